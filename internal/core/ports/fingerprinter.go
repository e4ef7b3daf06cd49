package ports

// Fingerprinter computes content digests for produced files.
//
//go:generate go run go.uber.org/mock/mockgen -source=fingerprinter.go -destination=mocks/mock_fingerprinter.go -package=mocks
type Fingerprinter interface {
	// DigestFile returns the content digest of the file at path.
	DigestFile(path string) (uint64, error)
}
