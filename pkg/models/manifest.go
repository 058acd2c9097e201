package models

// ManifestEntry maps a local file to its name inside an archive.
// Name always uses forward slashes.
type ManifestEntry struct {
	SourcePath string
	Name       string
}
