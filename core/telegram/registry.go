package telegram

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/tunerover/core/logger"
	"github.com/m3rciful/tunerover/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// ErrInvalidRegistration is returned for an empty name or key, a nil
// handler, a missing description or a command without a leading slash.
var ErrInvalidRegistration = errors.New("telegram: invalid registration")

// Registry is the bot's table of commands, their text aliases and
// inline button callbacks.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]commands.Command
	aliases   map[string]string // lowercased alias -> command name
	callbacks map[string]tele.HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		aliases:   make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
	}
}

// RegisterCommand adds cmd under name, a "/command". Aliases must not
// collide with another command's.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	if name == "" || !strings.HasPrefix(name, "/") || cmd.Handler == nil || cmd.Description == "" {
		return r.rejected("command", name, ErrInvalidRegistration)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		return r.rejected("command", name, fmt.Errorf("telegram: command %s already registered", name))
	}
	for _, a := range cmd.Aliases {
		if owner, dup := r.aliases[strings.ToLower(a)]; dup {
			return r.rejected("command", name, fmt.Errorf("telegram: alias %q already used by %s", a, owner))
		}
	}
	r.commands[name] = cmd
	for _, a := range cmd.Aliases {
		r.aliases[strings.ToLower(a)] = name
	}
	return nil
}

// RegisterCallback maps an inline button unique key to h.
func (r *Registry) RegisterCallback(key string, h tele.HandlerFunc) error {
	if key == "" || h == nil {
		return r.rejected("callback", key, ErrInvalidRegistration)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.callbacks[key]; dup {
		return r.rejected("callback", key, fmt.Errorf("telegram: callback %s already registered", key))
	}
	r.callbacks[key] = h
	return nil
}

func (r *Registry) rejected(kind, name string, err error) error {
	logger.TWire.Warn("tg.register",
		slog.String("status", "fail"),
		slog.String("kind", kind),
		slog.String("name", name),
		slog.String("err", err.Error()),
	)
	return err
}

// Commands returns a copy of the command table.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ListCommands returns the command menu sorted by name. With publicOnly,
// hidden and admin-only commands are left out.
func (r *Registry) ListCommands(publicOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for _, name := range r.sortedNames() {
		cmd := r.commands[name]
		if publicOnly && (cmd.Hidden || cmd.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: cmd.Description})
	}
	return list
}

// LookupCommand resolves "/name[@bot] [args]" or an exact alias, ignoring
// case, to the command's canonical name.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	text = strings.TrimSpace(text)
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := "", false
	if strings.HasPrefix(text, "/") {
		name, _, _ = strings.Cut(strings.Fields(text)[0], "@")
		_, ok = r.commands[name]
	} else if text != "" {
		name, ok = r.aliases[strings.ToLower(text)]
	}
	if !ok {
		return "", commands.Command{}, false
	}
	return name, r.commands[name], true
}

func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered callback keys, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// HelpLines renders "/cmd usage - description" for each visible command.
// Admin-only commands are included when withAdmin is set.
func (r *Registry) HelpLines(withAdmin bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var lines []string
	for _, name := range r.sortedNames() {
		cmd := r.commands[name]
		if cmd.Hidden || (cmd.AdminOnly && !withAdmin) {
			continue
		}
		line := name
		if cmd.Usage != "" {
			line += " " + cmd.Usage
		}
		lines = append(lines, line+" - "+cmd.Description)
	}
	return lines
}

// SetupCommands publishes the public command menu. Failure is logged only.
func SetupCommands(bot *tele.Bot, reg *Registry) {
	if bot == nil || reg == nil {
		return
	}
	menu := reg.ListCommands(true)
	if err := bot.SetCommands(menu); err != nil {
		logger.TWire.Warn("tg.commands.set", slog.String("status", "fail"), slog.String("err", err.Error()))
		return
	}
	logger.TWire.Debug("tg.commands.set", slog.String("status", "ok"), slog.Int("commands", len(menu)))
}
