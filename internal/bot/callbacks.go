package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"dailyplan/internal/apperr"
	"dailyplan/internal/service"
)

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	b.ack(cb)

	data := cb.Data
	entry := b.logger.WithFields(log.Fields{"telegram_id": cb.From.ID, "data": data})
	chatID := cb.Message.Chat.ID

	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		entry.Debug("callback complete request")
		taskID, err := parseTaskID(data, cbCompletePrefix)
		if err != nil {
			return nil
		}
		return b.askConfirmation(ctx, chatID, cb.From, taskID, actionComplete)
	case strings.HasPrefix(data, cbDeletePrefix):
		entry.Debug("callback delete request")
		taskID, err := parseTaskID(data, cbDeletePrefix)
		if err != nil {
			return nil
		}
		return b.askConfirmation(ctx, chatID, cb.From, taskID, actionDelete)
	default:
		return nil
	}
}

func (b *Bot) askConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint, action confirmationAction) error {
	user, err := b.ensureUser(ctx, from, chatID)
	if err != nil {
		return err
	}
	task, err := b.svc.Tasks.Get(ctx, user.ID, taskID)
	if err != nil {
		return b.sendText(chatID, taskError(err))
	}

	var text string
	switch action {
	case actionDelete:
		text = fmt.Sprintf("Delete task \"%s\" (#%d)?", escape(normalizeTitle(task.Title)), task.ID)
		if task.IsRepeating() {
			text += "\nLater repeats of it are deleted too."
		}
	default:
		if task.IsCompleted {
			return b.sendText(chatID, "The task is already done.")
		}
		text = fmt.Sprintf("Mark task «%s» (#%d) as done?", escape(normalizeTitle(task.Title)), task.ID)
	}
	b.setConfirmation(from.ID, confirmationRequest{taskID: task.ID, action: action})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) completeTaskAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from, chatID)
	if err != nil {
		return err
	}

	task, err := b.svc.Tasks.Get(ctx, user.ID, taskID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return b.sendTextWithRemove(chatID, "Task not found or already deleted.")
		}
		return b.sendTextWithRemove(chatID, taskError(err))
	}
	if task.IsCompleted {
		return b.sendTextWithRemove(chatID, "The task was already done.")
	}

	task, err = b.svc.Tasks.Update(ctx, user.ID, taskID, service.CompletionChange{Completed: true})
	if err != nil {
		return b.sendTextWithRemove(chatID, taskError(err))
	}

	b.logger.WithFields(log.Fields{"task_id": task.ID, "user_id": user.ID}).Info("task completed from bot")
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("✅ «%s» done.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendDayList(ctx, chatID, user, task.Date)
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from, chatID)
	if err != nil {
		return err
	}

	task, err := b.svc.Tasks.Get(ctx, user.ID, taskID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return b.sendTextWithRemove(chatID, "Task not found or already deleted.")
		}
		return b.sendTextWithRemove(chatID, taskError(err))
	}

	if err := b.svc.Tasks.Delete(ctx, user.ID, taskID); err != nil {
		return b.sendTextWithRemove(chatID, taskError(err))
	}

	b.logger.WithFields(log.Fields{"task_id": task.ID, "user_id": user.ID}).Info("task deleted from bot")
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("🗑 Task \"%s\" deleted.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendDayList(ctx, chatID, user, task.Date)
}

func parseTaskID(data, prefix string) (uint, error) {
	raw := strings.TrimPrefix(data, prefix)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}
