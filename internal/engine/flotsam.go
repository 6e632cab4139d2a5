package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ordlayer/ordindex/internal/envelope"
)

// Flotsam is an inscription in flight during block replay: it has escaped
// past the end of its carrying transaction's known output range (or is
// arriving fresh from an envelope) and is waiting to land on a final
// output once the output pass runs.
//
// Origin is a tagged union: IsOld selects between an existing inscription
// being carried forward (Old* fields) and a brand-new one just parsed from
// an envelope (the rest).
type Flotsam struct {
	Offset uint64

	IsOld     bool
	OldPrev   string
	OldID     string
	OldOffset uint64

	NewID       string
	Cursed      bool
	Unbound     bool
	Inscription envelope.Inscription
}

// offsetEntry tracks, for one sat offset within a transaction's input
// pass, the inscription that first landed there and how many
// reinscriptions have already piled onto it.
type offsetEntry struct {
	InitialID string
	Count     int
}

// parseOutputInscriptionList decodes the write-through cache's
// slash-delimited "/id:offset/id:offset" encoding.
func parseOutputInscriptionList(s string) []struct {
	ID     string
	Offset uint64
} {
	var out []struct {
		ID     string
		Offset uint64
	}
	for _, part := range strings.Split(s, "/") {
		if part == "" {
			continue
		}
		idx := strings.LastIndexByte(part, ':')
		if idx < 0 {
			continue
		}
		off, err := strconv.ParseUint(part[idx+1:], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, struct {
			ID     string
			Offset uint64
		}{ID: part[:idx], Offset: off})
	}
	return out
}

func appendOutputInscriptionEntry(s, id string, offset uint64) string {
	return s + fmt.Sprintf("/%s:%d", id, offset)
}

// removeOutputInscriptionEntry removes exactly one "/id:offset" occurrence.
func removeOutputInscriptionEntry(s, id string, offset uint64) string {
	target := fmt.Sprintf("/%s:%d", id, offset)
	return strings.Replace(s, target, "", 1)
}
