// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

package botservice

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/internal/botdb"
	"github.com/primo-rp/communitybot/internal/dispatch"
	"github.com/primo-rp/communitybot/pkg/schema"
	"github.com/primo-rp/communitybot/pkg/telegram"
)

// topicType namespaces decision callbacks so further review flows can share
// the same keyboard format.
const topicType = "anketa"

// russianText matches role and sortol answers: Russian letters, spaces,
// and hyphens only.
var russianText = regexp.MustCompile(`^[А-Яа-яЁё\s\-]+$`)

var decisionData = regexp.MustCompile(`^([a-z_]+):(accept|reject):([0-9]+)$`)

func cancelKeyboard() *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard(telegram.Row(telegram.CallbackButton("Отмена↩️", "start")))
}

func decisionKeyboard(kind string, thread int64) *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard(telegram.Row(
		telegram.CallbackButton("✅ Принять", fmt.Sprintf("%s:accept:%d", kind, thread)),
		telegram.CallbackButton("❌ Отклонить", fmt.Sprintf("%s:reject:%d", kind, thread)),
	))
}

// titleCase uppercases the first letter of each word, as submitted role
// names are normalized before review.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		for j := 1; j < len(r); j++ {
			r[j] = unicode.ToLower(r[j])
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// cancelDraft abandons the member's in-progress questionnaire, if any.
func (s *Service) cancelDraft(ctx context.Context, member int64) error {
	q, err := s.Store.DraftQuestionnaire(ctx, member)
	if errors.Is(err, botdb.ErrNotFound) {
		return nil
	} else if err != nil {
		return errors.Wrap(err, "fetching draft")
	}
	q.State = schema.QuestionnaireCancelled
	q.Updated = s.now()
	return errors.Wrap(s.Store.SaveQuestionnaire(ctx, q), "cancelling draft")
}

// handleNew starts a fresh questionnaire, abandoning any previous draft.
func (s *Service) handleNew(ctx context.Context, ev dispatch.Event) error {
	user := ev.User()
	if user == nil {
		return nil
	}
	if err := s.cancelDraft(ctx, user.ID); err != nil {
		return err
	}
	now := s.now()
	q := schema.Questionnaire{
		ID:      uuid.New().String(),
		Member:  user.ID,
		State:   schema.QuestionnaireRole,
		Created: now,
		Updated: now,
	}
	if err := s.Store.SaveQuestionnaire(ctx, q); err != nil {
		return errors.Wrap(err, "creating draft")
	}
	if _, err := s.Bot.SendMessage(ctx, telegram.SendMessageParams{
		Chat:        replyChat(ev),
		Text:        "Пожалуйста, отправьте желаемую роль:\n(только русские буквы, пробелы или дефисы)",
		ReplyMarkup: cancelKeyboard(),
	}); err != nil {
		return errors.Wrap(err, "prompting for role")
	}
	return s.answer(ctx, ev, "", false)
}

// handleDraftMessage consumes private messages from members with an open
// draft, advancing it one step per answer.
func (s *Service) handleDraftMessage(ctx context.Context, ev dispatch.Event) error {
	m := ev.Message
	if m == nil || m.Chat.Type != telegram.ChatPrivate || m.From == nil {
		return dispatch.ErrSkip
	}
	q, err := s.Store.DraftQuestionnaire(ctx, m.From.ID)
	if errors.Is(err, botdb.ErrNotFound) {
		return dispatch.ErrSkip
	} else if err != nil {
		return errors.Wrap(err, "fetching draft")
	}
	reply := func(text string, markup *telegram.InlineKeyboardMarkup) error {
		_, err := s.Bot.SendMessage(ctx, telegram.SendMessageParams{
			Chat:             telegram.ChatID(m.Chat.ID),
			Text:             text,
			ReplyToMessageID: m.MessageID,
			ReplyMarkup:      markup,
		})
		return errors.Wrap(err, "replying to draft answer")
	}
	// Answers must be typed text, not attachments or forwards.
	if m.HasMedia() {
		return reply("Ошибка: ответ должен быть текстовым сообщением.", cancelKeyboard())
	}
	if m.ForwardFrom != nil || m.ForwardFromChat != nil {
		return reply("Ошибка: пересланные сообщения не принимаются, введите ответ вручную.", cancelKeyboard())
	}
	switch q.State {
	case schema.QuestionnaireRole:
		if !russianText.MatchString(m.Text) {
			return reply("Ошибка: роль должна содержать только русские буквы, пробелы или дефисы.", nil)
		}
		q.Role = titleCase(strings.TrimSpace(m.Text))
		q.State = schema.QuestionnaireSortol
		q.Updated = s.now()
		if err := s.Store.SaveQuestionnaire(ctx, q); err != nil {
			return errors.Wrap(err, "saving draft")
		}
		return reply("Теперь укажите желаемый сортол:\n(только русские буквы, пробелы или дефисы)", cancelKeyboard())
	case schema.QuestionnaireSortol:
		if !russianText.MatchString(m.Text) {
			return reply("Ошибка: сортол должен содержать только русские буквы, пробелы или дефисы.", nil)
		}
		q.Sortol = titleCase(strings.TrimSpace(m.Text))
		q.State = schema.QuestionnaireCodePhrase
		q.Updated = s.now()
		if err := s.Store.SaveQuestionnaire(ctx, q); err != nil {
			return errors.Wrap(err, "saving draft")
		}
		return reply("Теперь введите кодовую фразу из правил:", cancelKeyboard())
	case schema.QuestionnaireCodePhrase:
		phrase := strings.TrimSpace(m.Text)
		if phrase == "" {
			return reply("Кодовая фраза не может быть пустой.", nil)
		}
		q.CodePhrase = phrase
		q.State = schema.QuestionnairePreview
		q.Updated = s.now()
		if err := s.Store.SaveQuestionnaire(ctx, q); err != nil {
			return errors.Wrap(err, "saving draft")
		}
		preview := fmt.Sprintf(
			"Проверьте данные анкеты:\n\n• Роль: %s\n• Сортол: %s\n• Кодовая фраза: %s",
			q.Role, q.Sortol, q.CodePhrase)
		return reply(preview, telegram.Keyboard(telegram.Row(
			telegram.CallbackButton("Отправить!", "submit_new"),
			telegram.CallbackButton("Отмена↩️", "start"),
		)))
	default:
		return dispatch.ErrSkip
	}
}

// handleSubmit files the previewed questionnaire into a fresh support forum
// topic for review.
func (s *Service) handleSubmit(ctx context.Context, ev dispatch.Event) error {
	user := ev.User()
	if user == nil {
		return nil
	}
	q, err := s.Store.DraftQuestionnaire(ctx, user.ID)
	if errors.Is(err, botdb.ErrNotFound) || (err == nil && q.State != schema.QuestionnairePreview) {
		return s.answer(ctx, ev, "Анкета не найдена. Начните заново.", true)
	} else if err != nil {
		return errors.Wrap(err, "fetching draft")
	}
	topic, err := s.Bot.CreateForumTopic(ctx, s.Config.SupportChat, "Анкета от "+user.FullName())
	if err != nil {
		return errors.Wrap(err, "creating forum topic")
	}
	text := fmt.Sprintf(
		"<b><a href=%q>Анкета</a></b>\n\n• Роль: %s\n• Сортол: %s\n• Кодовая фраза: %s",
		user.URL(), q.Role, q.Sortol, q.CodePhrase)
	if _, err := s.Bot.SendMessage(ctx, telegram.SendMessageParams{
		Chat:            s.Config.SupportChat,
		MessageThreadID: topic.MessageThreadID,
		Text:            text,
		ParseMode:       "HTML",
		ReplyMarkup:     decisionKeyboard(topicType, topic.MessageThreadID),
	}); err != nil {
		return errors.Wrap(err, "posting questionnaire")
	}
	q.State = schema.QuestionnaireSubmitted
	q.ThreadID = topic.MessageThreadID
	q.Updated = s.now()
	if err := s.Store.SaveQuestionnaire(ctx, q); err != nil {
		return errors.Wrap(err, "saving questionnaire")
	}
	if ev.Callback != nil && ev.Callback.Message != nil {
		if _, err := s.Bot.EditMessageText(ctx, telegram.EditMessageTextParams{
			Chat:      telegram.ChatID(ev.Callback.Message.Chat.ID),
			MessageID: ev.Callback.Message.MessageID,
			Text:      "✅ Ваша анкета успешно отправлена на рассмотрение!",
		}); err != nil {
			return errors.Wrap(err, "confirming submission")
		}
	}
	return s.answer(ctx, ev, "", false)
}

// handleDecision delivers an admin verdict to the applicant and retires the
// decision keyboard.
func (s *Service) handleDecision(ctx context.Context, ev dispatch.Event) error {
	parts := decisionData.FindStringSubmatch(ev.Data)
	if parts == nil || parts[1] != topicType {
		return nil
	}
	accept := parts[2] == "accept"
	thread, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return nil
	}
	q, err := s.Store.QuestionnaireByThread(ctx, thread)
	if errors.Is(err, botdb.ErrNotFound) {
		return s.answer(ctx, ev, "Пользователь не найден.", true)
	} else if err != nil {
		return errors.Wrap(err, "fetching questionnaire")
	}
	var verdict string
	if accept {
		verdict = fmt.Sprintf(
			"<b>🎉 Ваша анкета принята!</b>\n\nДобро пожаловать в проект!\n\nФлуд: %s\nРолевая: %s",
			s.Config.FloodURL, s.Config.RoleplayURL)
		q.State = schema.QuestionnaireAccepted
	} else {
		verdict = "<b>❌ Ваша анкета отклонена.</b>\n\nВы можете попробовать позже."
		q.State = schema.QuestionnaireRejected
	}
	if _, err := s.Bot.SendMessage(ctx, telegram.SendMessageParams{
		Chat:      telegram.ChatID(q.Member),
		Text:      verdict,
		ParseMode: "HTML",
	}); err != nil {
		return errors.Wrap(err, "delivering verdict")
	}
	q.Updated = s.now()
	if err := s.Store.SaveQuestionnaire(ctx, q); err != nil {
		return errors.Wrap(err, "saving verdict")
	}
	if ev.Callback != nil && ev.Callback.Message != nil {
		if err := s.Bot.EditMessageReplyMarkup(ctx, telegram.EditMessageReplyMarkupParams{
			Chat:      telegram.ChatID(ev.Callback.Message.Chat.ID),
			MessageID: ev.Callback.Message.MessageID,
		}); err != nil {
			return errors.Wrap(err, "clearing decision keyboard")
		}
	}
	return s.answer(ctx, ev, "Ответ отправлен пользователю.", false)
}

// handleTopicReply relays admin replies written inside a questionnaire
// topic back to the applicant.
func (s *Service) handleTopicReply(ctx context.Context, ev dispatch.Event) error {
	m := ev.Message
	if m == nil || m.MessageThreadID == 0 || m.ReplyToMessage == nil ||
		m.From == nil || m.From.IsBot || m.Chat.ID != s.Config.SupportChat.ID {
		return dispatch.ErrSkip
	}
	q, err := s.Store.QuestionnaireByThread(ctx, m.MessageThreadID)
	if errors.Is(err, botdb.ErrNotFound) {
		return dispatch.ErrSkip
	} else if err != nil {
		return errors.Wrap(err, "fetching questionnaire")
	}
	if _, err := s.Bot.SendMessage(ctx, telegram.SendMessageParams{
		Chat:      telegram.ChatID(q.Member),
		Text:      "<b>Ответ администратора:</b>\n" + m.Text,
		ParseMode: "HTML",
	}); err != nil {
		if _, rerr := s.Bot.SendMessage(ctx, telegram.SendMessageParams{
			Chat:             telegram.ChatID(m.Chat.ID),
			MessageThreadID:  m.MessageThreadID,
			ReplyToMessageID: m.MessageID,
			Text:             fmt.Sprintf("⚠️ Не удалось отправить сообщение пользователю: %v", err),
		}); rerr != nil {
			return errors.Wrap(rerr, "reporting relay failure")
		}
	}
	return nil
}

// handleQuestionnaireStatus reports the state of the member's latest
// questionnaire.
func (s *Service) handleQuestionnaireStatus(ctx context.Context, ev dispatch.Event) error {
	user := ev.User()
	if user == nil {
		return nil
	}
	var text string
	if q, err := s.Store.DraftQuestionnaire(ctx, user.ID); err == nil {
		switch q.State {
		case schema.QuestionnaireRole:
			text = "📖 Анкета заполняется: укажите желаемую роль."
		case schema.QuestionnaireSortol:
			text = "📖 Анкета заполняется: укажите желаемый сортол."
		case schema.QuestionnaireCodePhrase:
			text = "📖 Анкета заполняется: введите кодовую фразу из правил."
		default:
			text = "📖 Анкета заполнена: проверьте данные и отправьте её."
		}
	} else if errors.Is(err, botdb.ErrNotFound) {
		text = "У вас нет активной анкеты. Нажмите «Вступление🚀», чтобы начать."
	} else {
		return errors.Wrap(err, "fetching draft")
	}
	if _, err := s.Bot.SendMessage(ctx, telegram.SendMessageParams{Chat: replyChat(ev), Text: text}); err != nil {
		return errors.Wrap(err, "sending status")
	}
	return s.answer(ctx, ev, "", false)
}
