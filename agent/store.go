package agent

import (
	"errors"
	"strings"
)

const sessionNamespace = "rne:session"

var errEmptyUserID = errors.New("empty user id")

// sessionKey maps a user id to its cache key.
func sessionKey(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errEmptyUserID
	}
	return sessionNamespace + ":" + userID, nil
}
