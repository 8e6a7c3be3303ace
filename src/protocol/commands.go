package protocol

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"market-dashboard/src/helpers"
	"market-dashboard/src/models"
)

// -----------------------------------------------------------------------------

// EncodeCommand builds the outbound {action, symbols} control message
func EncodeCommand(action models.MAction, symbols []string) ([]byte, error) {
	if action != models.ActionSubscribe && action != models.ActionUnsubscribe {
		return nil, fmt.Errorf("unknown action %q", action)
	}
	if symbols == nil {
		symbols = []string{}
	}
	return json.Marshal(models.MSubscriptionCommand{Action: action, Symbols: symbols})
}

// -----------------------------------------------------------------------------

// DecodeCommand parses a client control message on the gateway side
func DecodeCommand(raw []byte) (models.MSubscriptionCommand, error) {
	var cmd models.MSubscriptionCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return cmd, wrapParse(raw, "malformed command", err)
	}
	if cmd.Action != models.ActionSubscribe && cmd.Action != models.ActionUnsubscribe {
		return cmd, helpers.NewParseError(raw, "unknown action %q", cmd.Action)
	}
	cmd.Symbols = NormalizeSymbols(cmd.Symbols)
	return cmd, nil
}

// -----------------------------------------------------------------------------

// EncodeAck builds a kind-tagged acknowledgement
func EncodeAck(status string, symbols []string) ([]byte, error) {
	if symbols == nil {
		symbols = []string{}
	}
	return json.Marshal(models.MSubscriptionAck{Kind: models.KindAck, Status: status, Symbols: symbols})
}

// -----------------------------------------------------------------------------

// NormalizeSymbols trims, drops empties, dedupes and sorts
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
