package models

// TransferTask tracks a single file upload.
type TransferTask struct {
	LocalPath   string
	RemotePath  string
	Transferred int64
	Total       int64
}

// Done reports whether every byte of the source has been written.
func (t *TransferTask) Done() bool {
	return t.Transferred >= t.Total
}
