package debate

import (
	"fmt"
	"os"
)

// LoadArtifact reads a file and returns an Artifact carrying its content
// digest. The path is kept for display and pattern matching only; it never
// contributes to the fingerprint.
func LoadArtifact(path string) (Artifact, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("read artifact %s: %w", path, err)
	}
	return Artifact{
		Path:   path,
		Digest: DigestContent(content),
		Size:   len(content),
	}, nil
}

// LoadArtifacts reads every path, failing on the first unreadable one.
func LoadArtifacts(paths []string) ([]Artifact, error) {
	var out []Artifact
	for _, p := range paths {
		a, err := LoadArtifact(p)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
