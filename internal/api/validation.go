package api

import (
	"fmt"
	"strings"
)

func (r SessionRequest) Validate() error {
	if strings.TrimSpace(r.ClientID) == "" {
		return fmt.Errorf("clientId is required")
	}
	if strings.Contains(r.ClientID, "/") {
		return fmt.Errorf("clientId must not contain '/'")
	}
	return nil
}
