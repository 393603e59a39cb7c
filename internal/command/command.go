// Package command implements the operator command protocol spoken over
// private chat.
package command

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"linkrelay/internal/bus"
	"linkrelay/internal/config"
	"linkrelay/internal/domain"
)

// Command is a parsed operator command.
type Command struct {
	Name string   // lower-cased, without the prefix
	Args []string // whitespace-separated arguments
	Raw  string   // original trimmed text
}

// Result is the outcome of handling a command.
type Result struct {
	Reply       string
	ShouldReply bool
}

// Fixed replies.
const (
	ReplyGroupRefused = "命令只能在私聊中使用。"
	ReplyNotOwner     = "权限不足：只有机器人主人可以执行此命令。"
	ReplyUnknown      = "未知命令，发送 help 查看可用命令。"
)

// adminCommands mutate configuration and require the owner when one is set.
var adminCommands = map[string]bool{
	"enable":          true,
	"disable":         true,
	"enable_private":  true,
	"disable_private": true,
	"add_group":       true,
	"remove_group":    true,
}

// IsAdmin reports whether the named command requires owner authorization.
func IsAdmin(name string) bool { return adminCommands[name] }

// Parse splits text into a command when it starts with prefix. Both
// "<prefix> name args" and "<prefix>name args" are accepted. A bare prefix
// parses as a command with an empty name.
func Parse(text, prefix string) (Command, bool) {
	text = strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return Command{}, false
	}

	parts := strings.Fields(text[len(prefix):])
	cmd := Command{Raw: text}
	if len(parts) > 0 {
		cmd.Name = strings.ToLower(parts[0])
		cmd.Args = parts[1:]
	}
	return cmd, true
}

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	Store     *config.Store
	Events    *bus.EventBus // optional
	Logger    *slog.Logger
	StartedAt time.Time     // for status uptime; default now
	ConnState func() string // optional live connection state for status
}

// Processor authorizes and executes operator commands. Handle is expected
// to be called from a single goroutine; the Store provides its own locking.
type Processor struct {
	store     *config.Store
	events    *bus.EventBus
	logger    *slog.Logger
	startedAt time.Time
	connState func() string
}

// NewProcessor creates a command processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}
	return &Processor{
		store:     cfg.Store,
		events:    cfg.Events,
		logger:    cfg.Logger,
		startedAt: cfg.StartedAt,
		connState: cfg.ConnState,
	}
}

// Handle executes cmd on behalf of senderID. Every path yields a reply.
func (p *Processor) Handle(cmd Command, senderID string, isGroup bool) Result {
	res, outcome := p.dispatch(cmd, senderID, isGroup)
	p.logger.Info("command handled", "command", cmd.Name, "sender", senderID, "group", isGroup, "outcome", outcome)
	p.emit(bus.EventCommandHandled, map[string]any{
		"command": cmd.Name,
		"sender":  senderID,
		"outcome": outcome,
	})
	return res
}

func (p *Processor) dispatch(cmd Command, senderID string, isGroup bool) (Result, string) {
	if isGroup {
		return reply(ReplyGroupRefused), "refused_group"
	}
	if IsAdmin(cmd.Name) && !p.authorized(senderID) {
		return reply(ReplyNotOwner), "refused_owner"
	}

	switch cmd.Name {
	case "", "help":
		return reply(p.helpText()), "ok"

	case "enable":
		return p.toggle("全局转发", true, p.store.SetEnabled)
	case "disable":
		return p.toggle("全局转发", false, p.store.SetEnabled)
	case "enable_private":
		return p.toggle("私聊转发", true, p.store.SetPrivateEnabled)
	case "disable_private":
		return p.toggle("私聊转发", false, p.store.SetPrivateEnabled)

	case "add_group":
		return p.addGroup(cmd)
	case "remove_group":
		return p.removeGroup(cmd)

	case "status":
		return reply(p.statusText()), "ok"
	case "list_groups":
		return reply(p.groupsText()), "ok"

	default:
		return reply(ReplyUnknown), "unknown"
	}
}

// authorized reports whether sender may run admin commands. With no owner
// configured everyone may.
func (p *Processor) authorized(senderID string) bool {
	owner := p.store.Owner()
	if owner == "" {
		return true
	}
	sender, ok := domain.FormatID(senderID)
	return ok && sender == owner
}

func (p *Processor) toggle(label string, on bool, set func(bool) error) (Result, string) {
	state := "关闭"
	if on {
		state = "开启"
	}
	text := fmt.Sprintf("%s已%s。", label, state)
	err := set(on)
	p.emit(bus.EventConfigChanged, map[string]any{"setting": label, "value": on})
	if err != nil {
		return reply(text + saveWarning(err)), "persist_failed"
	}
	return reply(text), "ok"
}

func (p *Processor) addGroup(cmd Command) (Result, string) {
	id, ok := groupArg(cmd)
	if !ok {
		return reply(p.usage("add_group <群号>")), "usage"
	}
	added, err := p.store.AddGroup(id)
	switch {
	case !added && err == nil:
		return reply(fmt.Sprintf("群 %s 已在白名单中。", id)), "noop"
	case !added:
		return reply(p.usage("add_group <群号>")), "usage"
	}
	p.emit(bus.EventConfigChanged, map[string]any{"setting": "allowedGroups", "added": id})
	text := fmt.Sprintf("已将群 %s 加入白名单。", id)
	if err != nil {
		return reply(text + saveWarning(err)), "persist_failed"
	}
	return reply(text), "ok"
}

func (p *Processor) removeGroup(cmd Command) (Result, string) {
	id, ok := groupArg(cmd)
	if !ok {
		return reply(p.usage("remove_group <群号>")), "usage"
	}
	removed, err := p.store.RemoveGroup(id)
	switch {
	case !removed && err == nil:
		return reply(fmt.Sprintf("群 %s 不在白名单中。", id)), "not_found"
	case !removed:
		return reply(p.usage("remove_group <群号>")), "usage"
	}
	p.emit(bus.EventConfigChanged, map[string]any{"setting": "allowedGroups", "removed": id})
	text := fmt.Sprintf("已将群 %s 移出白名单。", id)
	if err != nil {
		return reply(text + saveWarning(err)), "persist_failed"
	}
	return reply(text), "ok"
}

// groupArg returns the canonical numeric group id from the first argument.
func groupArg(cmd Command) (string, bool) {
	if len(cmd.Args) == 0 {
		return "", false
	}
	return domain.FormatID(cmd.Args[0])
}

func (p *Processor) usage(form string) string {
	return fmt.Sprintf("用法：%s %s", p.store.CommandPrefix(), form)
}

func (p *Processor) helpText() string {
	prefix := p.store.CommandPrefix()
	lines := []struct{ cmd, desc string }{
		{"help", "显示本帮助"},
		{"status", "查看当前状态"},
		{"list_groups", "列出白名单群"},
		{"enable", "开启全局转发"},
		{"disable", "关闭全局转发"},
		{"enable_private", "开启私聊转发"},
		{"disable_private", "关闭私聊转发"},
		{"add_group <群号>", "将群加入白名单"},
		{"remove_group <群号>", "将群移出白名单"},
	}
	var sb strings.Builder
	sb.WriteString("可用命令：")
	for _, l := range lines {
		fmt.Fprintf(&sb, "\n%s %s  %s", prefix, l.cmd, l.desc)
	}
	return sb.String()
}

func (p *Processor) statusText() string {
	cfg := p.store.Snapshot()
	var sb strings.Builder
	fmt.Fprintf(&sb, "全局转发：%s\n", onOff(cfg.Enabled))
	fmt.Fprintf(&sb, "私聊转发：%s\n", onOff(cfg.PrivateEnabled))
	fmt.Fprintf(&sb, "白名单群数：%d\n", len(cfg.AllowedGroups))
	if state, ok := p.connectionState(); ok {
		fmt.Fprintf(&sb, "连接状态：%s\n", state)
	}
	if p.events != nil {
		sent := p.events.Replay(bus.EventRelaySent, time.Now().Add(-time.Hour))
		fmt.Fprintf(&sb, "近一小时转发：%d\n", len(sent))
	}
	fmt.Fprintf(&sb, "运行时长：%s", time.Since(p.startedAt).Round(time.Second))
	return sb.String()
}

// connectionState returns the live connection state when a source is wired,
// otherwise the most recent state seen on the event bus.
func (p *Processor) connectionState() (string, bool) {
	if p.connState != nil {
		return p.connState(), true
	}
	if p.events == nil {
		return "", false
	}
	ev, ok := p.events.Last(bus.EventConnectionState)
	if !ok {
		return "", false
	}
	state, ok := ev.Payload["state"].(string)
	return state, ok
}

func (p *Processor) groupsText() string {
	groups := p.store.Snapshot().AllowedGroups
	if len(groups) == 0 {
		return "白名单为空。"
	}
	return fmt.Sprintf("白名单群（%d）：\n%s", len(groups), strings.Join(groups, "\n"))
}

func (p *Processor) emit(eventType string, payload map[string]any) {
	if p.events == nil {
		return
	}
	p.events.Emit(bus.Event{Type: eventType, Source: "command", Payload: payload})
}

func reply(text string) Result {
	return Result{Reply: text, ShouldReply: true}
}

func saveWarning(err error) string {
	return fmt.Sprintf("\n（警告：配置保存失败：%v）", err)
}

func onOff(v bool) string {
	if v {
		return "开启"
	}
	return "关闭"
}
