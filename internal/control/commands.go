package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/mintwatch/internal/core/domain"
	"github.com/vietddude/mintwatch/internal/core/tracker"
	"github.com/vietddude/mintwatch/internal/indexing/notifier"
	"github.com/vietddude/mintwatch/internal/infra/explorer"
)

var (
	// ErrInvalidAddress is returned for input that is not a hex account address.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrAddressResolution is returned when the latest block of a new address
	// could not be determined.
	ErrAddressResolution = errors.New("failed to resolve address")
)

const (
	usageStart = "Usage: /start addr name"
	usageStop  = "Specify address to stop monitoring on it"

	helpText = "ℹ️ *Usage Info for Etherscan Mint Transaction to Telegram Bot*:\n\n" +
		"• /start | _list monitored addresses_\n" +
		"• /start addr name | _start monitoring a new address_\n" +
		"• /stop addr | _stop monitoring an address_\n" +
		"• /help | _show usage info_"
)

// Kind tags a parsed command.
type Kind int

const (
	KindUsage Kind = iota
	KindList
	KindStart
	KindStop
	KindHelp
)

func (k Kind) String() string {
	switch k {
	case KindList:
		return "list"
	case KindStart:
		return "start"
	case KindStop:
		return "stop"
	case KindHelp:
		return "help"
	default:
		return "usage"
	}
}

// Command is an operator instruction. Address and Name are set for
// KindStart, Address for KindStop and Usage for KindUsage.
type Command struct {
	Kind    Kind
	Address string
	Name    string
	Usage   string
}

// ParseCommand turns chat text into a Command. Unrecognized or incomplete
// input yields KindUsage.
func ParseCommand(text string) Command {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{Kind: KindUsage, Usage: helpText}
	}

	// "/start@mybot" addresses a specific bot in group chats.
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	args := fields[1:]

	switch name {
	case "/start":
		switch {
		case len(args) == 0:
			return Command{Kind: KindList}
		case len(args) >= 2:
			return Command{Kind: KindStart, Address: args[0], Name: strings.Join(args[1:], " ")}
		default:
			return Command{Kind: KindUsage, Usage: usageStart}
		}
	case "/stop":
		if len(args) == 0 {
			return Command{Kind: KindUsage, Usage: usageStop}
		}
		return Command{Kind: KindStop, Address: args[0]}
	case "/help":
		return Command{Kind: KindHelp}
	default:
		return Command{Kind: KindUsage, Usage: helpText}
	}
}

// Resolver finds the block of the newest transaction of an address.
type Resolver interface {
	LatestBlock(ctx context.Context, address string) (uint64, error)
}

// Commands executes operator commands against the tracker.
type Commands struct {
	tracker    *tracker.Tracker
	resolver   Resolver
	addressURL func(address string) string
	onChange   func(ctx context.Context)
	log        *slog.Logger
}

// NewCommands creates the command surface. onChange runs after every
// successful mutation and may be nil.
func NewCommands(
	t *tracker.Tracker,
	resolver Resolver,
	addressURL func(address string) string,
	onChange func(ctx context.Context),
) *Commands {
	if addressURL == nil {
		addressURL = func(address string) string { return address }
	}
	return &Commands{
		tracker:    t,
		resolver:   resolver,
		addressURL: addressURL,
		onChange:   onChange,
		log:        slog.Default().With("component", "commands"),
	}
}

// HandleText parses and executes chat text.
func (c *Commands) HandleText(ctx context.Context, text string) string {
	return c.Handle(ctx, ParseCommand(text))
}

// Handle executes cmd and returns the reply text.
func (c *Commands) Handle(ctx context.Context, cmd Command) string {
	switch cmd.Kind {
	case KindList:
		return c.listReply()
	case KindStart:
		return c.startReply(ctx, cmd.Address, cmd.Name)
	case KindStop:
		return c.stopReply(ctx, cmd.Address)
	case KindHelp:
		return helpText
	default:
		if cmd.Usage == "" {
			return helpText
		}
		return cmd.Usage
	}
}

// Start registers address from the block after its newest transaction.
// An address without transactions starts at block 0.
func (c *Commands) Start(ctx context.Context, address, name string) (domain.MonitoredAddress, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return domain.MonitoredAddress{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	key := domain.NormalizeAddress(address)
	if _, ok := c.tracker.Get(key); ok {
		return domain.MonitoredAddress{}, fmt.Errorf("%w: %s", tracker.ErrAlreadyTracked, key)
	}

	var next uint64
	latest, err := c.resolver.LatestBlock(ctx, key)
	switch {
	case errors.Is(err, explorer.ErrNoTransactions):
		next = 0
	case err != nil:
		return domain.MonitoredAddress{}, fmt.Errorf("%w %s: %w", ErrAddressResolution, key, err)
	default:
		next = latest + 1
	}

	if err := c.tracker.Add(key, name, next); err != nil {
		return domain.MonitoredAddress{}, err
	}
	c.log.Info("Address added", "address", key, "name", name, "nextBlock", next)
	c.changed(ctx)
	return domain.MonitoredAddress{Address: key, Name: name, NextBlock: next}, nil
}

// Stop unregisters address and returns its display name.
func (c *Commands) Stop(ctx context.Context, address string) (string, error) {
	name, err := c.tracker.Remove(address)
	if err != nil {
		return "", err
	}
	c.log.Info("Address removed", "address", domain.NormalizeAddress(address), "name", name)
	c.changed(ctx)
	return name, nil
}

func (c *Commands) listReply() string {
	addresses := c.tracker.List()
	lines := make([]string, 0, len(addresses))
	for _, a := range addresses {
		lines = append(lines, fmt.Sprintf("• [%s](%s) *%s*", a.Address, c.addressURL(a.Address), notifier.EscapeMarkdown(a.Name)))
	}
	list := strings.Join(lines, "\n")
	if list == "" {
		list = "None"
	}
	return "🤖 *Etherscan Mint Transaction To Telegram*\n\nMonitored addresses:\n" + list
}

func (c *Commands) startReply(ctx context.Context, address, name string) string {
	added, err := c.Start(ctx, address, name)
	switch {
	case err == nil:
		return fmt.Sprintf("Added new monitored address: `%s`", added.Address)
	case errors.Is(err, ErrInvalidAddress):
		return "The specified address is invalid"
	case errors.Is(err, tracker.ErrAlreadyTracked):
		return fmt.Sprintf("The address `%s` is already monitored", domain.NormalizeAddress(address))
	default:
		c.log.Warn("Failed to add address", "address", address, "error", err)
		return fmt.Sprintf("Could not resolve the latest block of `%s`, try again later", domain.NormalizeAddress(address))
	}
}

func (c *Commands) stopReply(ctx context.Context, address string) string {
	name, err := c.Stop(ctx, address)
	if err != nil {
		return "The specified address is not in the list"
	}
	return fmt.Sprintf(
		"⏹ Successfully stopped monitoring address: `%s` *%s*",
		domain.NormalizeAddress(address),
		notifier.EscapeMarkdown(name),
	)
}

func (c *Commands) changed(ctx context.Context) {
	if c.onChange != nil {
		c.onChange(ctx)
	}
}
