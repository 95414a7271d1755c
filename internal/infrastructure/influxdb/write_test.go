package influxdb

import (
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

func tagsOf(p *write.Point) map[string]string {
	tags := make(map[string]string)
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	return tags
}

func fieldsOf(p *write.Point) map[string]interface{} {
	fields := make(map[string]interface{})
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	return fields
}

func TestDispatchPoint(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		toolName   string
		outcome    string
		reason     string
		wantReason bool
		wantTool   bool
	}{
		{name: "dispatched", toolName: "vacuum", outcome: "dispatched", wantTool: true},
		{name: "skipped", outcome: "skipped", reason: "missing_tool_name", wantReason: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := dispatchPoint("robots/r1/commands", tt.toolName, tt.outcome, tt.reason, ts)

			if p.Name() != measurementDispatch {
				t.Errorf("Name() = %q, want %q", p.Name(), measurementDispatch)
			}
			if !p.Time().Equal(ts) {
				t.Errorf("Time() = %v, want %v", p.Time(), ts)
			}

			tags := tagsOf(p)
			if tags[tagTopic] != "robots/r1/commands" || tags[tagOutcome] != tt.outcome {
				t.Errorf("tags = %v", tags)
			}
			if _, ok := tags[tagReason]; ok != tt.wantReason {
				t.Errorf("reason tag present = %v, want %v", ok, tt.wantReason)
			}

			fields := fieldsOf(p)
			if fields["count"] != int64(1) {
				t.Errorf("count field = %v (%T), want int64 1", fields["count"], fields["count"])
			}
			if _, ok := fields["tool_name"]; ok != tt.wantTool {
				t.Errorf("tool_name field present = %v, want %v", ok, tt.wantTool)
			}
		})
	}
}

func TestPhasePoint(t *testing.T) {
	ts := time.Now()

	ok := phasePoint("subscribed", 250*time.Millisecond, nil, ts)
	fields := fieldsOf(ok)
	if tagsOf(ok)[tagPhase] != "subscribed" {
		t.Errorf("phase tag = %v", tagsOf(ok))
	}
	if fields["elapsed_ms"] != int64(250) || fields["failed"] != false {
		t.Errorf("fields = %v", fields)
	}
	if _, has := fields["error"]; has {
		t.Error("error field set for successful phase")
	}

	failed := phasePoint("failed", time.Second, errors.New("boom"), ts)
	fields = fieldsOf(failed)
	if fields["failed"] != true || fields["error"] != "boom" {
		t.Errorf("fields = %v", fields)
	}
}

func TestHandleWriteErrors(t *testing.T) {
	c := &Client{}
	got := make(chan error, 1)
	c.SetOnError(func(err error) { got <- err })

	errs := make(chan error, 1)
	go c.handleWriteErrors(errs)
	errs <- errors.New("http 500")
	close(errs)

	select {
	case err := <-got:
		if !errors.Is(err, ErrWriteFailed) {
			t.Errorf("callback error = %v, want ErrWriteFailed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}
}
