package heaps

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/hafixo/gfx-extras/memory"
)

// HeapUtilization is a read-only snapshot of one heap's budget. Used is the
// sum of the charges of currently-live blocks; Allocated is the native
// bytes currently fetched from the device, including chunk and line
// overhead the strategies hold for reuse.
type HeapUtilization struct {
	Used      memory.Size
	Allocated memory.Size
	Total     memory.Size
}

// TypeUtilization mirrors the heap-level accounting for one memory type.
type TypeUtilization struct {
	Properties memory.Properties
	HeapIndex  uint32
	Used       memory.Size
	Allocated  memory.Size
}

// TotalUtilization is the full report: one entry per heap and per type, in
// device order.
type TotalUtilization struct {
	Heaps []HeapUtilization
	Types []TypeUtilization
}

// WriteJSON streams the report into an open JSON object.
func (u TotalUtilization) WriteJSON(w *jwriter.Writer) {
	obj := w.Object()

	heapsArr := obj.Name("heaps").Array()
	for _, h := range u.Heaps {
		e := w.Object()
		e.Name("used").Int(int(h.Used))
		e.Name("allocated").Int(int(h.Allocated))
		e.Name("total").Int(int(h.Total))
		e.End()
	}
	heapsArr.End()

	typesArr := obj.Name("types").Array()
	for _, t := range u.Types {
		e := w.Object()
		e.Name("properties").String(t.Properties.String())
		e.Name("heapIndex").Int(int(t.HeapIndex))
		e.Name("used").Int(int(t.Used))
		e.Name("allocated").Int(int(t.Allocated))
		e.End()
	}
	typesArr.End()

	obj.End()
}

// MarshalJSON implements json.Marshaler via the streaming writer.
func (u TotalUtilization) MarshalJSON() ([]byte, error) {
	w := jwriter.NewWriter()
	u.WriteJSON(&w)
	if err := w.Error(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
