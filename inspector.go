package docingest

// Inspector validates a binary file payload and describes it.
type Inspector interface {
	// Inspect checks the declared type and the content signature and returns
	// the file extract. Returns EVALIDATION for payloads that fail either check.
	Inspect(file *FilePayload) (*FileExtract, error)
}

// Hasher computes a content fingerprint.
type Hasher interface {
	Sum(data []byte) string
}
