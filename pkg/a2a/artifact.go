package a2a

/*
Artifact is a produced output of a task, assembled from parts that may
arrive incrementally via ArtifactUpdate events (§4.5).
*/
type Artifact struct {
	ArtifactID  string         `json:"artifactId"`
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Parts       []Part         `json:"parts"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Merge applies an incoming update onto the artifact per §4.5's append
// semantics: append concatenates parts, overwrites Name/Description only
// when the update supplies them, and merges metadata additively (new keys
// win). Replace (append=false) discards the prior record wholesale instead —
// parts, Name, Description and Metadata all become exactly what update
// carries, including nil.
func (a *Artifact) Merge(update Artifact, append bool) {
	if !append {
		a.Parts = update.Parts
		a.Name = update.Name
		a.Description = update.Description
		a.Metadata = update.Metadata
		return
	}

	a.Parts = concatParts(a.Parts, update.Parts)

	if update.Name != nil {
		a.Name = update.Name
	}
	if update.Description != nil {
		a.Description = update.Description
	}

	if len(update.Metadata) > 0 {
		if a.Metadata == nil {
			a.Metadata = make(map[string]any, len(update.Metadata))
		}
		for k, v := range update.Metadata {
			a.Metadata[k] = v
		}
	}
}

func concatParts(a, b []Part) []Part {
	out := make([]Part, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
