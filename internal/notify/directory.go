package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// LoadDirectory reads a StaticDirectory from a JSON file mapping user ids
// to contact records:
//
//	{"1": {"username": "alice", "email": "alice@example.com", "phone": "+1555"}}
func LoadDirectory(path string) (StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading users file: %w", err)
	}

	var raw map[string]struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing users file %s: %w", path, err)
	}

	dir := make(StaticDirectory, len(raw))
	for key, entry := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q in users file", key)
		}
		dir[id] = UserRef{
			ID:       id,
			Username: entry.Username,
			Email:    entry.Email,
			Phone:    entry.Phone,
		}
	}
	return dir, nil
}
