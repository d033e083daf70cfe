package postgres

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var errInvalidCursor = errors.New("invalid pagination cursor")

// Cursors encode the sort key of the last row served: creation (or
// attempt) time plus id as tiebreak, matching the in-memory stores so
// clients can switch backends without invalidating saved cursors.
func encodeCursor(at time.Time, id uuid.UUID) string {
	raw := fmt.Sprintf("%d:%s", at.UnixNano(), id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, uuid.Nil, errInvalidCursor
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, errInvalidCursor
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, uuid.Nil, errInvalidCursor
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, errInvalidCursor
	}
	return time.Unix(0, nanos), id, nil
}
