package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/getcharzp/go-medsam"
	"github.com/rs/zerolog"
)

// StageTiming 单个阶段耗时
type StageTiming struct {
	Stage   string
	Elapsed time.Duration
}

// Timings 按执行顺序记录的阶段耗时
type Timings []StageTiming

// Get 查询某个阶段的耗时
func (t Timings) Get(stage string) (time.Duration, bool) {
	for _, st := range t {
		if st.Stage == stage {
			return st.Elapsed, true
		}
	}
	return 0, false
}

// Total 总耗时
func (t Timings) Total() time.Duration {
	var total time.Duration
	for _, st := range t {
		total += st.Elapsed
	}
	return total
}

// String 单行摘要, 例如 "load=3ms normalize=1ms ... total=1.2s"
func (t Timings) String() string {
	var sb strings.Builder
	for _, st := range t {
		fmt.Fprintf(&sb, "%s=%s ", st.Stage, st.Elapsed.Round(time.Millisecond))
	}
	fmt.Fprintf(&sb, "total=%s", t.Total().Round(time.Millisecond))
	return sb.String()
}

// tracker 记录阶段耗时并统一包装错误
type tracker struct {
	logger  zerolog.Logger
	timings Timings
}

// run 执行一个阶段, 失败时返回 *medsam.StageError
func (tr *tracker) run(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	tr.timings = append(tr.timings, StageTiming{Stage: stage, Elapsed: elapsed})

	if err != nil {
		tr.logger.Error().Str("stage", stage).Dur("elapsed", elapsed).Err(err).Msg("阶段失败")
		return &medsam.StageError{Stage: stage, Err: err}
	}
	tr.logger.Info().Str("stage", stage).Dur("elapsed", elapsed).Msg("阶段完成")
	return nil
}
