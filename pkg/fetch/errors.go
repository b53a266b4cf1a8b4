package fetch

import "fmt"

// FetchError reports a failed download: a transport error or a non-success
// HTTP status from the archive host.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetching %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IntegrityError reports a checksum mismatch between the downloaded
// archive and the supplied checksum file.
type IntegrityError struct {
	Path string
	Want string
	Got  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: want %s, got %s", e.Path, e.Want, e.Got)
}

// ExtractionError reports an archive whose layout is unusable: no entries,
// more than one top-level directory, entries escaping the destination, or
// a resolved root that does not exist after extraction.
type ExtractionError struct {
	Archive string
	Reason  string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %s", e.Archive, e.Reason)
}
