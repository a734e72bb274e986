package preprocess

import "math"

const (
	// gaussTruncate 高斯核截断半径 (单位 sigma)
	gaussTruncate = 4.0
	// splinePole 三次 B 样条预滤波极点
	splinePole = -0.2679491924311228 // sqrt(3) - 2
)

// mirror 镜像边界 (d c b | a b c d | c b a), 周期 2n-2
func mirror(i, n int) int {
	if n == 1 {
		return 0
	}
	p := 2*n - 2
	i %= p
	if i < 0 {
		i += p
	}
	if i >= n {
		i = p - i
	}
	return i
}

// gaussianKernel 归一化一维高斯核, 半径 int(4*sigma + 0.5)
func gaussianKernel(sigma float64) []float64 {
	radius := int(gaussTruncate*sigma + 0.5)
	k := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-0.5 * float64(i*i) / (sigma * sigma))
		k[i+radius] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// gaussianBlur 一维高斯模糊, 镜像边界
func gaussianBlur(line []float64, sigma float64) []float64 {
	k := gaussianKernel(sigma)
	radius := len(k) / 2
	n := len(line)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j, w := range k {
			sum += w * line[mirror(i+j-radius, n)]
		}
		out[i] = sum
	}
	return out
}

// splinePrefilter 将采样值原地转换为三次 B 样条系数 (镜像边界)
func splinePrefilter(c []float64) {
	n := len(c)
	if n < 2 {
		return
	}
	z := splinePole
	gain := (1 - z) * (1 - 1/z)
	for i := range c {
		c[i] *= gain
	}

	// 因果初值
	zn1 := math.Pow(z, float64(n-1))
	zi := z
	c0 := c[0] + zn1*c[n-1]
	for i := 1; i < n-1; i++ {
		c0 += zi * (c[i] + zn1*c[n-1-i])
		zi *= z
	}
	c[0] = c0 / (1 - zn1*zn1)
	for i := 1; i < n; i++ {
		c[i] += z * c[i-1]
	}

	// 反因果
	c[n-1] = (z*c[n-2] + c[n-1]) * z / (z*z - 1)
	for i := n - 2; i >= 0; i-- {
		c[i] = z * (c[i+1] - c[i])
	}
}

// splineWeights 三次 B 样条权重, t 为小数部分
func splineWeights(t float64) [4]float64 {
	u := 1 - t
	t2 := t * t
	t3 := t2 * t
	return [4]float64{
		u * u * u / 6,
		(3*t3 - 6*t2 + 4) / 6,
		(-3*t3 + 3*t2 + 3*t + 1) / 6,
		t3 / 6,
	}
}

// resampleLine 一维重采样到 outN 个点:
// 缩小时先高斯抗混叠 (sigma = (f-1)/2), 再做三次 B 样条插值,
// 采样点按像素中心对齐 in = (out+0.5)*f - 0.5
func resampleLine(line []float64, outN int) []float64 {
	n := len(line)
	out := make([]float64, outN)
	if n == outN {
		copy(out, line)
		return out
	}

	f := float64(n) / float64(outN)
	var c []float64
	if sigma := (f - 1) / 2; sigma > 0 {
		c = gaussianBlur(line, sigma)
	} else {
		c = make([]float64, n)
		copy(c, line)
	}
	splinePrefilter(c)

	for j := 0; j < outN; j++ {
		x := (float64(j)+0.5)*f - 0.5
		fl := math.Floor(x)
		w := splineWeights(x - fl)
		start := int(fl) - 1
		sum := 0.0
		for k := 0; k < 4; k++ {
			sum += w[k] * c[mirror(start+k, n)]
		}
		out[j] = sum
	}
	return out
}
