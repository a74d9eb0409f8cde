package flow

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/weelysontheDISease/Telebot-V1/internal/messaging"
	"github.com/weelysontheDISease/Telebot-V1/internal/models"
	"github.com/weelysontheDISease/Telebot-V1/internal/ratelimit"
	"github.com/weelysontheDISease/Telebot-V1/internal/session"
	"github.com/weelysontheDISease/Telebot-V1/internal/store"
)

// Engine drives every conversation. One instance serves all users;
// per-user state lives in the session store.
type Engine struct {
	cfg      Config
	store    store.Store
	sessions *session.Store
	msg      messaging.Service
	limiter  *ratelimit.Limiter
	now      func() time.Time
}

// NewEngine creates a flow engine over the given collaborators.
func NewEngine(cfg Config, st store.Store, msg messaging.Service, sessions *session.Store, limiter *ratelimit.Limiter) *Engine {
	e := &Engine{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		msg:      msg,
		limiter:  limiter,
	}
	e.now = func() time.Time { return time.Now().In(cfg.Timezone) }
	return e
}

// Sessions exposes the session store (for the idle janitor).
func (e *Engine) Sessions() *session.Store { return e.sessions }

// Run consumes inbound events until the channel closes or ctx is done.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("Flow engine running")
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Flow engine stopped by context")
			return
		case ev, ok := <-e.msg.Events():
			if !ok {
				slog.Debug("Flow engine event channel closed")
				return
			}
			e.HandleEvent(ctx, ev)
		}
	}
}

// HandleEvent routes one inbound event. Unregistered users are turned
// away before any routing happens.
func (e *Engine) HandleEvent(ctx context.Context, ev models.Event) {
	slog.Debug("Engine handling event", "userID", ev.UserID, "kind", ev.Kind)

	user, err := e.resolveUser(ev)
	if err != nil {
		slog.Error("Engine user lookup failed", "error", err, "userID", ev.UserID)
		return
	}
	if user == nil || !user.IsActive {
		e.send(ctx, ev.UserID, "❌ You are not registered in the system.\nPlease contact the administrator.")
		return
	}

	switch ev.Kind {
	case models.EventCommand:
		e.handleCommand(ctx, user, ev)
	case models.EventCallback:
		e.handleCallback(ctx, user, ev)
	case models.EventText:
		e.handleText(ctx, user, ev)
	case models.EventDocument:
		e.handleDocument(ctx, user, ev)
	}
}

// resolveUser finds the registered user for an event. Rosters imported
// with only a username are bound to their platform id on first contact.
func (e *Engine) resolveUser(ev models.Event) (*models.User, error) {
	user, err := e.store.GetUserByPlatformID(ev.UserID)
	if err != nil || user != nil {
		return user, err
	}
	if ev.Username == "" {
		return nil, nil
	}
	user, err = e.store.GetUserByUsername(ev.Username)
	if err != nil || user == nil {
		return nil, err
	}
	if user.PlatformID == 0 {
		user.PlatformID = ev.UserID
		if err := e.store.UpsertUser(*user); err != nil {
			slog.Error("Engine failed to bind platform id", "error", err, "username", ev.Username)
			return nil, err
		}
		slog.Info("Engine bound platform id to imported user", "username", ev.Username, "userID", ev.UserID)
	}
	return user, nil
}

func (e *Engine) isAdmin(user *models.User) bool {
	return user != nil && user.IsAdmin && user.IsActive
}

// allow applies the per-user fixed-window rate limit for one entry
// point. It runs before any session mutation.
func (e *Engine) allow(ctx context.Context, user *models.User, bucket string) bool {
	if e.limiter.Allow(user.PlatformID, bucket, e.cfg.RateLimitMax, e.cfg.RateLimitWindow) {
		return true
	}
	slog.Debug("Engine rate limited", "userID", user.PlatformID, "bucket", bucket)
	e.send(ctx, user.PlatformID, "⏳ Too many requests. Please wait a bit before trying again.")
	return false
}

// ---------- Commands ----------

func (e *Engine) handleCommand(ctx context.Context, user *models.User, ev models.Event) {
	switch ev.Command {
	case "start_movement":
		if !e.allow(ctx, user, "start_movement") {
			return
		}
		e.startMovement(ctx, user)
	case "start_sft":
		if !e.allow(ctx, user, "start_sft") {
			return
		}
		e.startSFT(ctx, user)
	case "quit_sft":
		if !e.allow(ctx, user, "quit_sft") {
			return
		}
		e.quitSFT(ctx, user)
	case "start_status":
		if !e.allow(ctx, user, "start_status") {
			return
		}
		e.startStatusMenu(ctx, user)
	case "start_parade_state":
		if !e.requireAdmin(ctx, user) || !e.allow(ctx, user, "start_parade_state") {
			return
		}
		e.startParadeState(ctx, user)
	case "pt_admin":
		if !e.requireAdmin(ctx, user) || !e.allow(ctx, user, "start_pt_admin") {
			return
		}
		e.startPTAdmin(ctx, user)
	case "import_user":
		if !e.requireAdmin(ctx, user) || !e.allow(ctx, user, "import_user") {
			return
		}
		e.startImport(ctx, user)
	default:
		slog.Debug("Engine ignoring unknown command", "command", ev.Command)
	}
}

func (e *Engine) requireAdmin(ctx context.Context, user *models.User) bool {
	if e.isAdmin(user) {
		return true
	}
	e.send(ctx, user.PlatformID, "❌ You are not authorised.")
	return false
}

// ---------- Callbacks ----------

// handleCallback dispatches on the payload's routing key alone, so a
// stale keyboard pressed after a restart still lands on the right
// handler (or a clean "no active session" notice) instead of a wrong flow.
func (e *Engine) handleCallback(ctx context.Context, user *models.User, ev models.Event) {
	key, arg := models.SplitPayload(ev.Data)
	slog.Debug("Engine callback", "userID", user.PlatformID, "key", key)

	switch key {
	// Movement flow.
	case "mov:name":
		e.movementToggleName(ctx, user, arg)
	case "mov:done":
		e.movementDoneSelecting(ctx, user)
	case "mov:from":
		e.movementFrom(ctx, user, arg)
	case "mov:to":
		e.movementTo(ctx, user, arg)
	case "mov:time":
		e.movementTimeChoice(ctx, user, arg)
	case "mov:confirm":
		e.movementConfirm(ctx, user)
	case "mov:cancel":
		e.cancelSession(ctx, user)

	// Cadet SFT flow.
	case "sft:activity":
		e.sftActivity(ctx, user, arg)
	case "sft:start":
		e.sftStart(ctx, user, arg)
	case "sft:end":
		e.sftEnd(ctx, user, arg)
	case "sft:confirm":
		e.sftConfirm(ctx, user)
	case "sft:cancel":
		e.cancelSession(ctx, user)

	// PT admin panel.
	case "ptadmin:menu":
		e.adminMenu(ctx, user)
	case "ptadmin:set_timing":
		e.adminSetTiming(ctx, user)
	case "ptadmin:remove":
		e.adminRemoveList(ctx, user)
	case "ptadmin:remove_user":
		e.adminRemoveUser(ctx, user, arg)
	case "ptadmin:generate":
		e.adminGenerate(ctx, user)
	case "ptadmin:pick_instructor":
		e.adminPickInstructor(ctx, user, arg)
	case "ptadmin:pick_salutation":
		e.adminPickSalutation(ctx, user, arg)
	case "ptadmin:send_report":
		e.adminSendReport(ctx, user)

	// Parade state.
	case "parade:send":
		e.paradeSend(ctx, user)
	case "parade:cancel":
		e.cancelSession(ctx, user)

	// Status menu and medical flows (legacy bare keys).
	case "status_menu":
		e.statusMenuChoice(ctx, user, arg)
	case "name":
		e.medicalNamePicked(ctx, user, arg)
	case "rsi_name":
		e.medicalNamePicked(ctx, user, arg)
	case "update_name":
		e.medicalUpdateNamePicked(ctx, user, arg, models.KindRSOUpdate)
	case "rsi_update_name":
		e.medicalUpdateNamePicked(ctx, user, arg, models.KindRSIUpdate)
	case "update_ma_name":
		e.maUpdateNamePicked(ctx, user, arg)
	case "instructor":
		e.maInstructorPicked(ctx, user, arg)
	case "mc_days":
		e.medicalDaysPicked(ctx, user, arg, false)
	case "rsi_days":
		e.medicalDaysPicked(ctx, user, arg, true)
	case "rsi_type":
		e.medicalStatusTypePicked(ctx, user, arg)
	case "confirm", "confirm_ma", "confirm_ma_update", "confirm_rsi_report", "confirm_rsi_update":
		e.medicalConfirm(ctx, user)
	case "cancel":
		e.cancelSession(ctx, user)

	// Batch coordinator.
	case "continue_reporting":
		e.batchContinue(ctx, user, arg)
	case "done_reporting":
		e.batchDone(ctx, user)
	case "send_batch_ic":
		e.batchSend(ctx, user)
	case "cancel_batch_send":
		e.batchCancel(ctx, user)

	// Admin CSV import.
	case "import_user":
		e.importChoice(ctx, user, arg)

	default:
		e.send(ctx, user.PlatformID, "❌ No active session.\nPlease start with /start_sft or /start_movement.")
	}
}

// ---------- Free text ----------

// handleText routes by mode and awaiting flag only; text that nothing
// is waiting for is dropped.
func (e *Engine) handleText(ctx context.Context, user *models.User, ev models.Event) {
	sess := e.sessions.Get(user.PlatformID)
	if sess == nil {
		return
	}
	e.sessions.Touch(user.PlatformID)

	switch sess.Mode {
	case session.ModeMovement:
		e.movementManualTime(ctx, user, sess, ev.Text)
	case session.ModePTAdmin:
		e.adminTimeRangeText(ctx, user, sess, ev.Text)
	case session.ModeParade:
		e.paradeCountText(ctx, user, sess, ev.Text)
	default:
		if session.KindForMode(sess.Mode) != "" {
			e.medicalText(ctx, user, sess, ev.Text)
		}
	}
}

func (e *Engine) handleDocument(ctx context.Context, user *models.User, ev models.Event) {
	sess := e.sessions.Get(user.PlatformID)
	if sess == nil || sess.Mode != session.ModeImport || sess.Import == nil || !sess.Import.AwaitingDocument {
		return
	}
	e.importDocument(ctx, user, sess, ev)
}

// ---------- Shared helpers ----------

func (e *Engine) cancelSession(ctx context.Context, user *models.User) {
	e.sessions.Clear(user.PlatformID)
	e.send(ctx, user.PlatformID, "Cancelled.")
}

// NotifyEvicted tells a user their idle conversation was discarded.
func (e *Engine) NotifyEvicted(userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	e.send(ctx, userID, "⌛ Your session expired after inactivity. Please start again.")
}

func (e *Engine) send(ctx context.Context, chatID int64, body string) {
	if err := e.msg.SendMessage(ctx, chatID, body); err != nil {
		slog.Error("Engine send failed", "error", err, "chatID", chatID)
	}
}

func (e *Engine) sendPrompt(ctx context.Context, chatID int64, prompt models.Prompt) {
	if err := e.msg.SendPrompt(ctx, chatID, prompt); err != nil {
		slog.Error("Engine prompt failed", "error", err, "chatID", chatID)
	}
}

// notifyAdmins fans a copy of a relayed report out to every admin.
func (e *Engine) notifyAdmins(ctx context.Context, body string) {
	ids, err := e.store.ListAdminPlatformIDs()
	if err != nil {
		slog.Error("Engine admin list failed", "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	if err := e.msg.NotifyAdmins(ctx, ids, body); err != nil {
		slog.Error("Engine admin notify failed", "error", err)
	}
}

func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
