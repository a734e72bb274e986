package imageio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"github.com/getcharzp/go-medsam"
)

// maxPGMPixels PGM 像素数上限, 超出的文件头视为损坏
const maxPGMPixels = 1 << 26

// pgmHeader P2/P5 文件头
type pgmHeader struct {
	magic  string
	width  int
	height int
	maxVal int
}

// readToken 读取下一个以空白分隔的字段, 跳过 # 注释
func readToken(r *bufio.Reader) (string, error) {
	var buf bytes.Buffer
	for {
		c, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && buf.Len() > 0 {
				return buf.String(), nil
			}
			return "", err
		}
		switch {
		case c == '#' && buf.Len() == 0:
			if _, err := r.ReadString('\n'); err != nil && err != io.EOF {
				return "", err
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if buf.Len() > 0 {
				return buf.String(), nil
			}
		default:
			buf.WriteByte(c)
		}
	}
}

func readInt(r *bufio.Reader, field string) (int, error) {
	tok, err := readToken(r)
	if err != nil {
		return 0, fmt.Errorf("%w: PGM 缺少 %s: %v", medsam.ErrInputFormat, field, err)
	}
	n, err := strconv.Atoi(tok)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: PGM %s 不合法: %q", medsam.ErrInputFormat, field, tok)
	}
	return n, nil
}

func readPGMHeader(r *bufio.Reader) (pgmHeader, error) {
	var h pgmHeader
	magic, err := readToken(r)
	if err != nil {
		return h, fmt.Errorf("%w: 读取 PGM 文件头失败: %v", medsam.ErrInputFormat, err)
	}
	if magic != "P2" && magic != "P5" {
		return h, fmt.Errorf("%w: 不支持的 PGM 类型 %q", medsam.ErrInputFormat, magic)
	}
	h.magic = magic
	if h.width, err = readInt(r, "width"); err != nil {
		return h, err
	}
	if h.height, err = readInt(r, "height"); err != nil {
		return h, err
	}
	if h.maxVal, err = readInt(r, "maxval"); err != nil {
		return h, err
	}
	if h.maxVal > 65535 {
		return h, fmt.Errorf("%w: PGM maxval 超出范围: %d", medsam.ErrInputFormat, h.maxVal)
	}
	if h.width > maxPGMPixels/h.height {
		return h, fmt.Errorf("%w: PGM 尺寸 %dx%d 超过上限 %d 像素", medsam.ErrInputFormat, h.width, h.height, maxPGMPixels)
	}
	return h, nil
}

// DecodePGM 解码 P2 (ASCII) 或 P5 (二进制) 灰度图
//
// maxval > 255 时 P5 按 16 位大端读取; 像素值保持原始数值, 不按 maxval 缩放
func DecodePGM(r io.Reader) (*medsam.RawImage, error) {
	br := bufio.NewReader(r)
	h, err := readPGMHeader(br)
	if err != nil {
		return nil, err
	}

	bitDepth := 8
	if h.maxVal > 255 {
		bitDepth = 16
	}
	n := h.width * h.height

	// 像素缓冲随实际读到的数据增长, 截断的文件不会按文件头分配内存
	if h.magic == "P2" {
		var pix []float64
		for len(pix) < n {
			tok, err := readToken(br)
			if err != nil {
				return nil, fmt.Errorf("%w: PGM 像素数据不完整 (%d/%d)", medsam.ErrInputFormat, len(pix), n)
			}
			v, err := strconv.Atoi(tok)
			if err != nil || v < 0 {
				return nil, fmt.Errorf("%w: PGM 像素值不合法: %q", medsam.ErrInputFormat, tok)
			}
			pix = append(pix, float64(v))
		}
		raw := medsam.NewRawImage(h.width, h.height, 1, bitDepth)
		copy(raw.Pix, pix)
		return raw, nil
	}

	// P5: 文件头之后恰好一个空白字符, readToken 已消费
	bytesPer := bitDepth / 8
	data, err := io.ReadAll(io.LimitReader(br, int64(n*bytesPer)))
	if err != nil {
		return nil, fmt.Errorf("%w: 读取 PGM 像素数据失败: %v", medsam.ErrInputFormat, err)
	}
	if len(data) != n*bytesPer {
		return nil, fmt.Errorf("%w: PGM 像素数据不完整 (%d/%d 字节)", medsam.ErrInputFormat, len(data), n*bytesPer)
	}
	raw := medsam.NewRawImage(h.width, h.height, 1, bitDepth)
	for i := range raw.Pix {
		if bytesPer == 2 {
			raw.Pix[i] = float64(binary.BigEndian.Uint16(data[2*i:]))
		} else {
			raw.Pix[i] = float64(data[i])
		}
	}
	return raw, nil
}

// EncodePGM 以 P5 格式写出 Mask, maxval 255, 像素值保持 0/1
func EncodePGM(w io.Writer, m *medsam.Mask) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P5\n%d %d\n255\n", m.Width, m.Height); err != nil {
		return err
	}
	if _, err := bw.Write(m.Pix); err != nil {
		return err
	}
	return bw.Flush()
}
