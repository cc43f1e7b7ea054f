package internal

import (
	"chat-relay/domain"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Namespace string
	Detail    string
}

type RowMapper func(key string, val []byte) InspectRow

// Scan maps every key under prefix. An empty prefix scans the whole store.
func Scan(db *badger.DB, prefix string, mapper RowMapper) ([]InspectRow, error) {
	if mapper == nil {
		mapper = RelayMapper
	}
	var rows []InspectRow
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				rows = append(rows, mapper(string(item.Key()), val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rows, err
}

func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.SplitN(key, ":", 2)
	row := InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Namespace: parts[0],
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}
	if len(parts) == 2 {
		row.EntityID = short(parts[1])
	}
	return row
}

// RelayMapper decodes the records written by the repositories.
func RelayMapper(key string, val []byte) InspectRow {
	row := DefaultMapper(key, val)
	switch {
	case strings.HasPrefix(key, "idx:msg:"):
		row.Type = "HISTORY"
		row.Namespace = "idx"
		rest := strings.TrimPrefix(key, "idx:msg:")
		// {conversation}:{accepted}:{sequence}:{id}, the conversation may contain ':'
		fields := strings.Split(rest, ":")
		if len(fields) >= 4 {
			if nanos, err := strconv.ParseInt(fields[len(fields)-3], 10, 64); err == nil {
				row.Timestamp = time.Unix(0, nanos).Format("15:04:05")
			}
			row.Detail = "conversation " + strings.Join(fields[:len(fields)-3], ":")
		}
		row.EntityID = short(string(val))
	case strings.HasPrefix(key, "msg:"):
		var m domain.Message
		if cbor.Unmarshal(val, &m) != nil {
			return row
		}
		row.Type = strings.ToUpper(string(m.Type))
		row.Timestamp = m.CreatedAt().Format("15:04:05")
		row.Detail = fmt.Sprintf("[%s] %s: %s (%s, %d reactions)",
			m.ConversationID, m.SenderID, m.Content, m.Status, len(m.Reactions))
	case strings.HasPrefix(key, "conv:"):
		var c domain.Conversation
		if cbor.Unmarshal(val, &c) != nil {
			return row
		}
		row.Type = strings.ToUpper(string(c.Kind))
		row.Timestamp = time.UnixMilli(c.CreatedAt).UTC().Format("15:04:05")
		row.Detail = c.Name
	case strings.HasPrefix(key, "user:"):
		var i domain.Identity
		if cbor.Unmarshal(val, &i) != nil {
			return row
		}
		row.Type = "USER"
		row.Detail = i.DisplayName()
	case strings.HasPrefix(key, "status:"):
		var s domain.Story
		if cbor.Unmarshal(val, &s) != nil {
			return row
		}
		row.Type = "STATUS"
		row.EntityID = short(s.ID)
		row.Timestamp = time.UnixMilli(s.Timestamp).UTC().Format("15:04:05")
		row.Detail = fmt.Sprintf("%s: %s (until %s)", s.UserID, s.Content,
			time.UnixMilli(s.ExpiresAt).UTC().Format("Jan 2 15:04"))
	case strings.HasPrefix(key, "member:"), strings.HasPrefix(key, "user_conv:"):
		row.Type = "LINK"
		row.Detail = strings.TrimPrefix(key, row.Namespace+":")
	}
	return row
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
