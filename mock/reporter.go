package mock

import (
	"sync"

	"gitlab.com/xhrwatcher/xhrw"
)

type Reporter struct {
	lock sync.Mutex

	AddFn     func(report *xhrw.Report)
	AddCalled bool

	Reports []*xhrw.Report
}

func (r *Reporter) Add(report *xhrw.Report) {
	r.lock.Lock()
	r.AddCalled = true
	r.lock.Unlock()
	r.AddFn(report)
}

// Count of collected reports
func (r *Reporter) Count() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.Reports)
}

// Get a collected report by request id
func (r *Reporter) Get(id string) *xhrw.Report {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, report := range r.Reports {
		if report.ID == id {
			return report
		}
	}
	return nil
}

func MakeMockReporter() *Reporter {
	r := &Reporter{Reports: make([]*xhrw.Report, 0)}

	r.AddFn = func(report *xhrw.Report) {
		r.lock.Lock()
		r.Reports = append(r.Reports, report)
		r.lock.Unlock()
	}
	return r
}
