package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/services"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/config"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/metrics"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/telegram"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/utils"
)

const (
	kindDue     = "due"
	kindAging   = "aging"
	kindPayment = "payment"

	// Ограничение длины сообщения Telegram.
	paymentDigestSize = 30
)

// ReminderScheduler - три периодические задачи: сработавшие напоминания,
// заказы без внимания и ежедневный список неоплаченных.
type ReminderScheduler struct {
	cfg          config.ReminderConfig
	targetChatID int64
	loc          *time.Location

	orderRepo repositories.OrderRepositoryInterface
	runRepo   repositories.SchedulerRunRepositoryInterface
	tg        telegram.ServiceInterface
	fanout    services.FanoutServiceInterface
	renderer  *services.Renderer
	logger    *zap.Logger
	now       func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Последний день, за который ежедневная задача уже отработала в этом процессе.
	lastRunMu   sync.Mutex
	lastRunDate string
}

func NewReminderScheduler(
	cfg config.ReminderConfig,
	targetChatID int64,
	orderRepo repositories.OrderRepositoryInterface,
	runRepo repositories.SchedulerRunRepositoryInterface,
	tg telegram.ServiceInterface,
	fanout services.FanoutServiceInterface,
	renderer *services.Renderer,
	logger *zap.Logger,
) *ReminderScheduler {
	return &ReminderScheduler{
		cfg:          cfg,
		targetChatID: targetChatID,
		loc:          renderer.Location(),
		orderRepo:    orderRepo,
		runRepo:      runRepo,
		tg:           tg,
		fanout:       fanout,
		renderer:     renderer,
		logger:       logger,
		now:          time.Now,
	}
}

// SetClock подменяет часы (тесты).
func (s *ReminderScheduler) SetClock(now func() time.Time) {
	s.now = now
}

func (s *ReminderScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.loop(ctx, kindDue, s.cfg.DueCheckInterval, s.RunDueReminders)
	s.loop(ctx, kindAging, s.cfg.AgingCheckInterval, s.RunAgingSweep)
	s.loop(ctx, kindPayment, s.cfg.PaymentCheckInterval, s.RunPaymentSweep)

	s.logger.Info("Планировщик напоминаний запущен",
		zap.Duration("dueInterval", s.cfg.DueCheckInterval),
		zap.Duration("agingInterval", s.cfg.AgingCheckInterval),
		zap.Duration("paymentInterval", s.cfg.PaymentCheckInterval),
		zap.String("timezone", s.loc.String()),
	)
	return nil
}

func (s *ReminderScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Планировщик напоминаний остановлен")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ReminderScheduler) loop(ctx context.Context, kind string, interval time.Duration, run func(context.Context) error) {
	if interval <= 0 {
		s.logger.Warn("Задача планировщика отключена", zap.String("kind", kind))
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runSafely(ctx, kind, run)
			}
		}
	}()
}

func (s *ReminderScheduler) runSafely(ctx context.Context, kind string, run func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Паника в задаче планировщика", zap.String("kind", kind), zap.Any("panic", r))
		}
	}()
	started := time.Now()
	if err := run(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("Ошибка задачи планировщика", zap.String("kind", kind), zap.Error(err))
	}
	metrics.SweepDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

func (s *ReminderScheduler) chatViewerID() string {
	return fmt.Sprintf(constants.ViewerChatFormat, s.targetChatID)
}

// RunDueReminders: сначала забрать напоминание (compare-and-clear), потом отправить, потом разослать.
// Напоминание, которое забрала другая реплика или переставил оператор, пропускается.
// Неудачная отправка возвращает напоминание на место до следующего прохода.
func (s *ReminderScheduler) RunDueReminders(ctx context.Context) error {
	now := s.now()
	orders, err := s.orderRepo.ListDueReminders(ctx, nil, now, uint64(s.cfg.DueBatchLimit))
	if err != nil {
		return fmt.Errorf("выборка напоминаний: %w", err)
	}

	for _, order := range orders {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		firedAt := order.ReminderAt.Time

		claimed, err := s.orderRepo.ClaimReminder(ctx, nil, order.ID, firedAt)
		if err != nil {
			s.logger.Error("Не удалось забрать напоминание", zap.Int64("orderID", order.ID), zap.Error(err))
			continue
		}
		if !claimed {
			s.logger.Debug("Напоминание уже забрано или переставлено", zap.Int64("orderID", order.ID))
			continue
		}

		cleared := *order
		cleared.ReminderAt.Valid = false
		view := s.renderer.Render(&cleared)
		text := "⏰ <b>Нагадування</b>\n\n" + view.Text

		messageID, err := s.tg.SendMessageEx(ctx, s.targetChatID, text,
			telegram.WithHTML(), telegram.WithKeyboard(services.OrderKeyboard(view)))
		if err != nil {
			metrics.ReminderNotificationsTotal.WithLabelValues(kindDue, "error").Inc()
			s.logger.Error("Не удалось отправить напоминание, повторим позже",
				zap.Int64("orderID", order.ID), zap.Error(err))
			s.releaseReminder(ctx, order.ID, firedAt)
			continue
		}
		metrics.ReminderNotificationsTotal.WithLabelValues(kindDue, "ok").Inc()

		// Свежая карточка в чате становится живой отрисовкой для этого зрителя.
		if err := s.fanout.RegisterView(ctx, order.ID, s.chatViewerID(), entities.NotificationHandle{
			Channel:   constants.ChannelTelegram,
			ChatID:    s.targetChatID,
			MessageID: messageID,
		}); err != nil {
			s.logger.Warn("Не удалось зарегистрировать карточку напоминания", zap.Int64("orderID", order.ID), zap.Error(err))
		}

		if err := s.fanout.Broadcast(ctx, order.ID, s.chatViewerID(), s.renderer.Render); err != nil {
			s.logger.Warn("Ошибка рассылки после напоминания", zap.Int64("orderID", order.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *ReminderScheduler) releaseReminder(ctx context.Context, orderID int64, firedAt time.Time) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultStoreTTL)
	defer cancel()
	restored, err := s.orderRepo.ReleaseReminder(releaseCtx, nil, orderID, firedAt)
	if err != nil {
		s.logger.Error("Не удалось вернуть напоминание", zap.Int64("orderID", orderID), zap.Error(err))
		return
	}
	if !restored {
		s.logger.Info("Напоминание не возвращено: уже поставлено новое или заказ закрыт", zap.Int64("orderID", orderID))
	}
}

func (s *ReminderScheduler) inWorkingHours(t time.Time) bool {
	hour := t.In(s.loc).Hour()
	return hour >= s.cfg.WorkStartHour && hour < s.cfg.WorkEndHour
}

// RunAgingSweep - сводка новых заказов без внимания. Вне рабочих часов ничего не делает.
func (s *ReminderScheduler) RunAgingSweep(ctx context.Context) error {
	// Отметка в БД хранится с точностью до микросекунд; откат сравнивает на равенство.
	now := s.now().Truncate(time.Microsecond)
	if !s.inWorkingHours(now) {
		return nil
	}

	claims, err := s.orderRepo.ClaimAging(ctx, nil, now, s.cfg.AgingThreshold, s.cfg.AgingCooldown)
	if err != nil {
		return fmt.Errorf("захват заказов без внимания: %w", err)
	}
	if len(claims) == 0 {
		return nil
	}

	text := s.agingDigest(claims, now)
	if _, err := s.tg.SendMessageEx(ctx, s.targetChatID, text, telegram.WithHTML()); err != nil {
		metrics.ReminderNotificationsTotal.WithLabelValues(kindAging, "error").Inc()
		// ctx может быть уже отменён, откат делаем в своём.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultStoreTTL)
		defer cancel()
		if relErr := s.orderRepo.ReleaseAging(releaseCtx, nil, claims, now); relErr != nil {
			s.logger.Error("Не удалось откатить отметки заказов без внимания", zap.Error(relErr))
		}
		return fmt.Errorf("отправка сводки заказов без внимания: %w", err)
	}

	metrics.ReminderNotificationsTotal.WithLabelValues(kindAging, "ok").Inc()
	s.logger.Info("Сводка заказов без внимания отправлена", zap.Int("orders", len(claims)))
	return nil
}

func agingMarker(age time.Duration) string {
	switch {
	case age >= 3*time.Hour:
		return "🚨"
	case age >= 2*time.Hour:
		return "⚠️"
	case age >= time.Hour:
		return "🔥"
	}
	return "📍"
}

func (s *ReminderScheduler) agingDigest(claims []entities.AgingClaim, now time.Time) string {
	sort.Slice(claims, func(i, j int) bool {
		return claims[i].Order.CreatedAt.Before(claims[j].Order.CreatedAt)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "🔔 <b>Необроблені замовлення: %d</b>\n", len(claims))
	for i, c := range claims {
		if i >= constants.AgingDigestSize {
			fmt.Fprintf(&b, "\n<i>...та ще %d</i>", len(claims)-constants.AgingDigestSize)
			break
		}
		age := now.Sub(c.Order.CreatedAt)
		fmt.Fprintf(&b, "\n%s #%s • %s • %s", agingMarker(age),
			telegram.EscapeHTML(c.Order.DisplayNumber()),
			telegram.EscapeHTML(displayName(c.Order)),
			utils.FormatAge(age))
	}
	return b.String()
}

// RunPaymentSweep срабатывает один раз за локальный день, при первой проверке после PaymentHour:PaymentMinute.
func (s *ReminderScheduler) RunPaymentSweep(ctx context.Context) error {
	now := s.now()
	local := now.In(s.loc)
	fireAt := time.Date(local.Year(), local.Month(), local.Day(), s.cfg.PaymentHour, s.cfg.PaymentMinute, 0, 0, s.loc)
	if local.Before(fireAt) {
		return nil
	}
	day := local.Format(constants.RunDateLayout)

	s.lastRunMu.Lock()
	defer s.lastRunMu.Unlock()
	if s.lastRunDate == day {
		return nil
	}

	claimed, err := s.runRepo.ClaimDailyRun(ctx, nil, constants.JobPaymentReminder, day)
	if err != nil {
		return fmt.Errorf("захват ежедневного запуска: %w", err)
	}
	if !claimed {
		s.lastRunDate = day
		return nil
	}

	orders, err := s.orderRepo.ListAwaitingPayment(ctx, nil)
	if err != nil {
		s.releaseDay(ctx, day)
		return fmt.Errorf("выборка неоплаченных заказов: %w", err)
	}
	if len(orders) == 0 {
		s.lastRunDate = day
		return nil
	}

	if _, err := s.tg.SendMessageEx(ctx, s.targetChatID, paymentDigest(orders, now), telegram.WithHTML()); err != nil {
		metrics.ReminderNotificationsTotal.WithLabelValues(kindPayment, "error").Inc()
		s.releaseDay(ctx, day)
		return fmt.Errorf("отправка списка неоплаченных: %w", err)
	}

	metrics.ReminderNotificationsTotal.WithLabelValues(kindPayment, "ok").Inc()
	s.lastRunDate = day
	s.logger.Info("Список неоплаченных заказов отправлен", zap.Int("orders", len(orders)), zap.String("day", day))
	return nil
}

func (s *ReminderScheduler) releaseDay(ctx context.Context, day string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultStoreTTL)
	defer cancel()
	if err := s.runRepo.ReleaseDailyRun(releaseCtx, nil, constants.JobPaymentReminder, day); err != nil {
		s.logger.Error("Не удалось откатить ежедневный запуск", zap.String("day", day), zap.Error(err))
	}
}

func paymentMarker(age time.Duration) string {
	switch {
	case age >= 48*time.Hour:
		return "🚨"
	case age >= 24*time.Hour:
		return "⚠️"
	case age >= 12*time.Hour:
		return "🔥"
	}
	return "📍"
}

func paymentDigest(orders []*entities.Order, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💳 <b>Очікують оплату: %d</b>\n", len(orders))
	for i, o := range orders {
		if i >= paymentDigestSize {
			fmt.Fprintf(&b, "\n<i>...та ще %d</i>", len(orders)-paymentDigestSize)
			break
		}
		age := now.Sub(o.PaymentAgingSince())
		fmt.Fprintf(&b, "\n%s #%s • %s • %s", paymentMarker(age),
			telegram.EscapeHTML(o.DisplayNumber()),
			telegram.EscapeHTML(displayName(o)),
			utils.FormatAge(age))
		if o.CustomerPhoneE164.Valid {
			fmt.Fprintf(&b, " • %s", o.CustomerPhoneE164.String)
		}
	}
	return b.String()
}

func displayName(o *entities.Order) string {
	if name := o.CustomerName(); name != "" {
		return name
	}
	return "Без імені"
}
