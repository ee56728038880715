package ugoira

// Progress is reported after each completed frame. Frame counts completed
// frames, so the last report has Frame == Total and Fraction == 1.
type Progress struct {
	Frame    int
	Total    int
	Fraction float64
}

// ProgressSink receives progress reports in frame order.
type ProgressSink interface {
	Progress(p Progress)
}

// ProgressFunc adapts a plain function to ProgressSink.
type ProgressFunc func(p Progress)

// Progress implements ProgressSink.
func (f ProgressFunc) Progress(p Progress) {
	f(p)
}

type discardProgress struct{}

func (discardProgress) Progress(Progress) {}
