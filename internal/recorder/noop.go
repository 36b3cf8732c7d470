package recorder

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordScan(_ *ScanEvent) error       { return nil }
func (n *NoopRecorder) RecordTrigger(_ *TriggerEvent) error { return nil }
func (n *NoopRecorder) Close() error                        { return nil }
