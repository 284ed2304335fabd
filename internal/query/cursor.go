package query

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Cursor pins a position in the (discovery_score DESC, artifact_id DESC)
// ordering. The artifact id is the deterministic tie-break, so concurrent
// score writes can neither duplicate nor skip items relative to the sort key
// at cursor issuance.
type Cursor struct {
	Score      float64
	ArtifactID uint64
}

// Encode renders the cursor as an opaque page token.
func (c Cursor) Encode() string {
	raw := strconv.FormatFloat(c.Score, 'g', -1, 64) + ":" + strconv.FormatUint(c.ArtifactID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a page token. An empty token means the first page.
func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return Cursor{}, fmt.Errorf("malformed cursor %q", raw)
	}
	score, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor score: %w", err)
	}
	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor id: %w", err)
	}
	return Cursor{Score: score, ArtifactID: id}, nil
}
