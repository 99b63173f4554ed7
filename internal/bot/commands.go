package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
	"dailyplan/internal/service"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "today":
		return b.handleToday(ctx, msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "add":
		return b.handleAdd(ctx, msg)
	case "done":
		return b.handleCompletion(ctx, msg, true)
	case "undo":
		return b.handleCompletion(ctx, msg, false)
	case "move":
		return b.handleMove(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "notes":
		return b.handleNotes(ctx, msg)
	case "note":
		return b.handleAddNote(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From, msg.Chat.ID); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "friend"
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep your day in order.</b>\n\n%s", escape(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

const helpText = "Commands:\n" +
	"• /today [YYYY-MM-DD] - tasks of a day\n" +
	"• /newtask - plan a task step by step\n" +
	"• /add &lt;title&gt; - quick task for today\n" +
	"• /done &lt;id&gt; - mark a task completed\n" +
	"• /undo &lt;id&gt; - reopen a task\n" +
	"• /move &lt;id&gt; &lt;position&gt; - reorder within the day\n" +
	"• /delete &lt;id&gt; - delete a task (and later repeats)\n" +
	"• /notes - backlog notes\n" +
	"• /note &lt;text&gt; - add a note\n" +
	"• /report - daily report now\n" +
	"• /cancel - cancel current input"

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Help</b>\n"+helpText)
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return err
	}
	text, err := b.svc.Reports.DailySummary(ctx, *user, b.now().In(b.loc))
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the report: %s", escape(userMessage(err))))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return err
	}
	day := b.today()
	if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
		parsed, err := model.ParseDay(args)
		if err != nil {
			return b.sendText(msg.Chat.ID, "Use the <code>2025-11-30</code> date format.")
		}
		day = parsed
	}
	return b.sendDayList(ctx, msg.Chat.ID, user, day)
}

func (b *Bot) handleAdd(ctx context.Context, msg *tgbotapi.Message) error {
	title := strings.TrimSpace(msg.CommandArguments())
	if title == "" {
		return b.startNewTaskConversation(ctx, msg)
	}
	return b.finishTaskCreation(ctx, msg.From, service.TaskInput{Date: b.today(), Title: title}, msg.Chat.ID)
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From, msg.Chat.ID); err != nil {
		return err
	}
	b.logger.WithField("telegram_id", msg.From.ID).Debug("start new task conversation")
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		state.input.Title = text
		state.stage = stageNote
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Add a note (or press «Skip»).", skipKeyboard())
	case stageNote:
		if !isSkipInput(text) {
			state.input.Note = text
		}
		state.stage = stageDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "📅 Which day? Use <code>2025-11-30</code> (or «Skip» for today).", skipKeyboard())
	case stageDate:
		state.input.Date = b.today()
		if !isSkipInput(text) {
			day, err := model.ParseDay(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Cannot read that date. Use <code>2025-11-30</code> or «Skip».", skipKeyboard())
			}
			state.input.Date = day
		}
		state.stage = stageRepeat
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔁 Repeat for how many days in a row? (1–366, «Skip» for once)", skipKeyboard())
	case stageRepeat:
		if !isSkipInput(text) {
			days, err := strconv.Atoi(text)
			if err != nil || days < 1 || days > service.MaxRepeatDays {
				return b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("Send a number from 1 to %d.", service.MaxRepeatDays), skipKeyboard())
			}
			state.input.RepeatDays = days
		}
		err := b.finishTaskCreation(ctx, msg.From, state.input, msg.Chat.ID)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Dialog reset. Try /newtask again.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, from *tgbotapi.User, input service.TaskInput, chatID int64) error {
	user, err := b.ensureUser(ctx, from, chatID)
	if err != nil {
		return err
	}

	task, err := b.svc.Tasks.Create(ctx, user.ID, input)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not save the task: %s", escape(userMessage(err))))
	}

	b.logger.WithFields(log.Fields{
		"task_id":   task.ID,
		"user_id":   user.ID,
		"repeating": task.IsRepeating(),
	}).Info("task created from bot")

	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(normalizeTitle(task.Title))))
	if task.Note != "" {
		summary.WriteString(fmt.Sprintf("• <b>Note:</b> %s\n", escape(task.Note)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Day:</b> %s\n", task.Date.Format(model.DateLayout)))
	if task.IsRepeating() && task.RepeatableDays != nil {
		summary.WriteString(fmt.Sprintf("• <b>Repeats:</b> %d days in a row\n", *task.RepeatableDays))
	}

	if err := b.sendTextWithRemove(chatID, strings.TrimSpace(summary.String())); err != nil {
		return err
	}
	return b.sendDayList(ctx, chatID, user, task.Date)
}

func (b *Bot) handleCompletion(ctx context.Context, msg *tgbotapi.Message, completed bool) error {
	usage := "/done 12"
	if !completed {
		usage = "/undo 12"
	}
	taskID, ok := parseIDArg(msg.CommandArguments())
	if !ok {
		return b.sendText(msg.Chat.ID, "Give the task ID: "+usage)
	}
	user, err := b.ensureUser(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return err
	}
	task, err := b.svc.Tasks.Update(ctx, user.ID, taskID, service.CompletionChange{Completed: completed})
	if err != nil {
		return b.sendText(msg.Chat.ID, taskError(err))
	}
	if completed {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ «%s» done.", escape(normalizeTitle(task.Title))))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("↩️ «%s» is open again.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleMove(ctx context.Context, msg *tgbotapi.Message) error {
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /move &lt;id&gt; &lt;position&gt;")
	}
	taskID, ok := parseIDArg(fields[0])
	if !ok {
		return b.sendText(msg.Chat.ID, "Task ID must be a number.")
	}
	position, err := strconv.Atoi(fields[1])
	if err != nil {
		return b.sendText(msg.Chat.ID, "Position must be a number.")
	}
	user, err := b.ensureUser(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return err
	}
	task, err := b.svc.Tasks.Update(ctx, user.ID, taskID, service.OrderChange{Order: position})
	if err != nil {
		return b.sendText(msg.Chat.ID, taskError(err))
	}
	return b.sendDayList(ctx, msg.Chat.ID, user, task.Date)
}

// handleDelete removes a task. For a repeating task the later repeats go too.
func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok := parseIDArg(msg.CommandArguments())
	if !ok {
		return b.sendText(msg.Chat.ID, "Give the task ID: /delete 12")
	}
	user, err := b.ensureUser(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return err
	}
	task, err := b.svc.Tasks.Get(ctx, user.ID, taskID)
	if err != nil {
		return b.sendText(msg.Chat.ID, taskError(err))
	}
	if err := b.svc.Tasks.Delete(ctx, user.ID, taskID); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not delete the task: %s", escape(userMessage(err))))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 Task \"%s\" deleted.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleNotes(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return err
	}
	notes, err := b.svc.Notes.List(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load notes: %s", escape(userMessage(err))))
	}
	if len(notes) == 0 {
		return b.sendText(msg.Chat.ID, "No notes yet. Add one with /note &lt;text&gt;.")
	}
	var builder strings.Builder
	builder.WriteString("🗒 <b>Notes</b>\n")
	for _, n := range notes {
		builder.WriteString(fmt.Sprintf("%d. %s\n", n.Order, escape(n.Detail)))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleAddNote(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return err
	}
	note, err := b.svc.Notes.Create(ctx, user.ID, msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not save the note: %s", escape(userMessage(err))))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🗒 Note #%d saved.", note.Order))
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		if req.action == actionDelete {
			return b.deleteTaskAndRefresh(ctx, msg.Chat.ID, msg.From, req.taskID)
		}
		return b.completeTaskAndRefresh(ctx, msg.Chat.ID, msg.From, req.taskID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendMenuPlaceholder(msg.Chat.ID)
	default:
		prompt := "Confirm or cancel completing the task."
		if req.action == actionDelete {
			prompt = "Confirm or cancel deleting the task."
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, prompt, confirmKeyboard())
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelToday):
		return true, b.handleToday(ctx, msg)
	case strings.ToLower(menuLabelNotes):
		return true, b.handleNotes(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) sendDayList(ctx context.Context, chatID int64, user *model.User, day time.Time) error {
	tasks, err := b.svc.Tasks.ListDay(ctx, user.ID, day)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load tasks: %s", escape(userMessage(err))))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, fmt.Sprintf("Nothing planned for %s. Add a task with /newtask.", day.Format(model.DateLayout)))
	}

	text, buttons := renderDay(day, tasks)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

// taskError renders a task lookup or update failure for the chat.
func taskError(err error) string {
	if errors.Is(err, apperr.ErrNotFound) {
		return "Task not found."
	}
	return fmt.Sprintf("Error: %s", escape(userMessage(err)))
}

// userMessage hides internal failures from chat users.
func userMessage(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrConflict):
		return apperr.Message(err)
	default:
		return "internal error"
	}
}

func parseIDArg(raw string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
