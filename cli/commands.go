package main

import (
	"fmt"
	"strconv"
	"strings"
)

const helpText = `Type a message to order, or:
  /1 /2 /3          press a button of the last reply
  /loc LAT,LNG      share a location
  /paid  /declined  simulate the payment provider
  /reset            start over
  /quit             exit`

// parseInput turns a line typed by the user into an action. buttons are the
// quick replies of the last restaurant message.
func parseInput(line string, buttons []Button) (action, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return action{}, fmt.Errorf("nothing to send")
	}
	if !strings.HasPrefix(line, "/") {
		return action{event: &Event{Kind: "text", Text: line}}, nil
	}

	cmd, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	switch cmd {
	case "quit", "q":
		return action{quit: true}, nil
	case "help", "h":
		return action{help: true}, nil
	case "reset":
		return action{reset: true}, nil
	case "paid":
		return action{payment: &paymentAction{success: true}}, nil
	case "declined":
		return action{payment: &paymentAction{success: false}}, nil
	case "loc":
		lat, lng, ok := strings.Cut(arg, ",")
		if !ok {
			return action{}, fmt.Errorf("usage: /loc LAT,LNG")
		}
		la, err1 := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		ln, err2 := strconv.ParseFloat(strings.TrimSpace(lng), 64)
		if err1 != nil || err2 != nil {
			return action{}, fmt.Errorf("usage: /loc LAT,LNG")
		}
		return action{event: &Event{Kind: "location", Location: &Location{Lat: la, Lng: ln}}}, nil
	}

	n, err := strconv.Atoi(cmd)
	if err != nil {
		return action{}, fmt.Errorf("unknown command /%s, try /help", cmd)
	}
	if n < 1 || n > len(buttons) {
		return action{}, fmt.Errorf("no button %d on the last message", n)
	}
	return action{event: &Event{Kind: "button", ButtonID: buttons[n-1].ID}}, nil
}

type paymentAction struct {
	success bool
}

// action is exactly one of its fields
type action struct {
	event   *Event
	payment *paymentAction
	reset   bool
	help    bool
	quit    bool
}
