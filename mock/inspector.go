package mock

import "github.com/fwojciec/docingest"

var (
	_ docingest.Inspector = (*Inspector)(nil)
	_ docingest.Hasher    = (*Hasher)(nil)
)

// Inspector is a mock implementation of docingest.Inspector.
type Inspector struct {
	InspectFn func(file *docingest.FilePayload) (*docingest.FileExtract, error)
}

func (i *Inspector) Inspect(file *docingest.FilePayload) (*docingest.FileExtract, error) {
	return i.InspectFn(file)
}

// Hasher is a mock implementation of docingest.Hasher.
type Hasher struct {
	SumFn func(data []byte) string
}

func (h *Hasher) Sum(data []byte) string {
	return h.SumFn(data)
}
