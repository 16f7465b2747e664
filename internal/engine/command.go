package engine

import (
	"strconv"
	"strings"

	"github.com/lox/roomwager/internal/outcome"
)

type action int

const (
	actNone action = iota
	actStart
	actJoin
	actLeave
	actBet
	actDraw
	actDeal
	actStatus
	actHelp
	actEnable
	actDisable
)

var actions = map[string]action{
	"start":   actStart,
	"join":    actJoin,
	"leave":   actLeave,
	"bet":     actBet,
	"draw":    actDraw,
	"deal":    actDeal,
	"status":  actStatus,
	"help":    actHelp,
	"enable":  actEnable,
	"disable": actDisable,
}

// request is a parsed command
type request struct {
	action   action
	variant  Variant
	stake    int64
	hasStake bool
	category outcome.Category
}

// parseCommand turns chat text into a request. Ordinary chatter returns
// actNone with no error; text that is explicitly addressed to the engine
// with a ! or / prefix but is not understood is rejected.
func parseCommand(text string, defaultVariant Variant) (request, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(fields) == 0 {
		return request{}, nil
	}

	head := fields[0]
	prefixed := strings.HasPrefix(head, "!") || strings.HasPrefix(head, "/")
	head = strings.TrimLeft(head, "!/")

	act, ok := actions[head]
	if !ok {
		if prefixed {
			return request{}, reject(ErrUnknownCommand, "Unknown command %q. Type help for the list of commands.", head)
		}
		return request{}, nil
	}
	args := fields[1:]
	req := request{action: act}

	switch act {
	case actStart:
		req.variant = defaultVariant
		for _, arg := range args {
			if v, ok := ParseVariant(arg); ok {
				req.variant = v
				continue
			}
			n, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return request{}, reject(ErrUnknownCommand, "Usage: start [lowcard|baccarat] [stake]")
			}
			if n <= 0 {
				return request{}, reject(ErrStakeOutOfRange, "Stake must be a positive number.")
			}
			req.stake, req.hasStake = n, true
		}
	case actBet:
		if len(args) != 2 {
			return request{}, reject(ErrUnknownCommand, "Usage: bet <player|banker|tie> <amount>")
		}
		cat, err := outcome.ParseCategory(args[0])
		if err != nil {
			return request{}, reject(ErrUnknownCategory, "Unknown bet %q. Choose player, banker or tie.", args[0])
		}
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || n <= 0 {
			return request{}, reject(ErrStakeOutOfRange, "Bet amount must be a positive number.")
		}
		req.category, req.stake, req.hasStake = cat, n, true
	}
	return req, nil
}

const helpText = `Commands:
  start [lowcard|baccarat] [stake]  start a game in this room
  join                              join the LowCard lobby
  leave                             leave before the game starts (stake refunded)
  bet <player|banker|tie> <amount>  bet on the Baccarat coup
  draw                              draw your card this round
  deal                              deal now (initiator or moderator)
  status                            show the current game
  enable | disable                  turn games on or off (moderator)`
