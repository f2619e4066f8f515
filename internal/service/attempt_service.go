package service

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/util"
	"examhub_backend/pkg/logger"
	"examhub_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultStartRetries = 5

// StatisticsInvalidator drops cached rollups that a fresh grade makes stale.
type StatisticsInvalidator interface {
	InvalidateDefinition(definitionID string)
}

type AttemptService struct {
	Repo         *repository.AttemptRepository
	Definitions  *repository.DefinitionRepository
	Events       *EventPublisher
	Stats        StatisticsInvalidator
	StartRetries int
}

func NewAttemptService(repo *repository.AttemptRepository, defs *repository.DefinitionRepository, events *EventPublisher) *AttemptService {
	return &AttemptService{
		Repo:         repo,
		Definitions:  defs,
		Events:       events,
		StartRetries: defaultStartRetries,
	}
}

// PresentedOption never carries the correctness flag or explanation.
type PresentedOption struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type PresentedQuestion struct {
	ID           string            `json:"id"`
	QuestionType string            `json:"questionType"`
	Content      string            `json:"content"`
	Points       int               `json:"points"`
	Options      []PresentedOption `json:"options,omitempty"`
	LeftItems    []string          `json:"leftItems,omitempty"`
	RightItems   []string          `json:"rightItems,omitempty"`
}

type StartAttemptResult struct {
	AttemptID     string              `json:"attemptId"`
	AttemptNumber int                 `json:"attemptNumber"`
	Status        string              `json:"status"`
	StartedAt     time.Time           `json:"startedAt"`
	DeadlineAt    *time.Time          `json:"deadlineAt,omitempty"`
	Questions     []PresentedQuestion `json:"questions"`
}

type FinalizeResult struct {
	AttemptID   string     `json:"attemptId"`
	Status      string     `json:"status"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	AggregateResult
}

type RecordedAnswerView struct {
	QuestionID   string          `json:"questionId"`
	Payload      json.RawMessage `json:"payload"`
	PointsEarned *int            `json:"pointsEarned,omitempty"`
	IsCorrect    *bool           `json:"isCorrect,omitempty"`
	ReviewStatus string          `json:"reviewStatus,omitempty"`
	Feedback     string          `json:"feedback,omitempty"`
}

// RevealedQuestion discloses answer material post-finalize, only when the
// definition opted in with showAnswers.
type RevealedQuestion struct {
	QuestionID       string               `json:"questionId"`
	CorrectOptionIDs []string             `json:"correctOptionIds,omitempty"`
	Pairs            []model.SnapshotPair `json:"pairs,omitempty"`
	Explanation      string               `json:"explanation,omitempty"`
}

type AttemptView struct {
	AttemptID        string               `json:"attemptId"`
	DefinitionID     string               `json:"definitionId"`
	AttemptNumber    int                  `json:"attemptNumber"`
	Status           string               `json:"status"`
	StartedAt        time.Time            `json:"startedAt"`
	DeadlineAt       *time.Time           `json:"deadlineAt,omitempty"`
	SubmittedAt      *time.Time           `json:"submittedAt,omitempty"`
	RemainingSeconds *int                 `json:"remainingSeconds,omitempty"`
	Questions        []PresentedQuestion  `json:"questions"`
	MyAnswers        []RecordedAnswerView `json:"myAnswers"`
	Result           *FinalizeResult      `json:"result,omitempty"`
	Revealed         []RevealedQuestion   `json:"revealed,omitempty"`
}

// StartAttempt snapshots the published definition, allocates the next attempt
// number and returns the presented question set. The number allocation and the
// max-attempt check run in one transaction, retried on unique-index conflicts,
// so N concurrent starts observe the sequence 1..N with the limit intact.
func (s *AttemptService) StartAttempt(definitionID string, userID uint) (*StartAttemptResult, error) {
	d, err := s.Definitions.FindByID(definitionID)
	if err != nil {
		return nil, mapNotFound(err, util.ErrDefinitionNotFound)
	}
	if !d.IsPublished {
		return nil, util.ErrDefinitionNotPublished
	}

	now := time.Now()
	snap := model.SnapshotDefinition(d, now)
	raw, err := snap.Marshal()
	if err != nil {
		return nil, err
	}

	attempt := &model.Attempt{
		DefinitionID: definitionID,
		UserID:       userID,
		Status:       model.AttemptOpen,
		StartedAt:    now,
		Snapshot:     raw,
	}
	if d.TimeLimit > 0 {
		deadline := now.Add(time.Duration(d.TimeLimit) * time.Minute)
		attempt.DeadlineAt = &deadline
	}

	retries := s.StartRetries
	if retries <= 0 {
		retries = defaultStartRetries
	}
	var createErr error
	for i := 0; i < retries; i++ {
		createErr = s.Repo.CreateNumbered(attempt, d.MaxAttempts)
		if createErr == nil || !repository.IsDuplicateEntry(createErr) {
			break
		}
		logger.Log.Debug("attempt number conflict, retrying",
			zap.String("definitionId", definitionID),
			zap.Uint("userId", userID),
			zap.Int("retry", i+1))
	}
	if createErr != nil {
		if repository.IsDuplicateEntry(createErr) {
			return nil, util.ErrAttemptNumberConflict
		}
		return nil, createErr
	}

	monitoring.AttemptsStarted.Inc()
	logger.Log.Info("attempt started",
		zap.String("attemptId", attempt.ID),
		zap.String("definitionId", definitionID),
		zap.Uint("userId", userID),
		zap.Int("attemptNumber", attempt.AttemptNumber))

	return &StartAttemptResult{
		AttemptID:     attempt.ID,
		AttemptNumber: attempt.AttemptNumber,
		Status:        attempt.Status,
		StartedAt:     attempt.StartedAt,
		DeadlineAt:    attempt.DeadlineAt,
		Questions:     toPresentedQuestions(PresentQuestions(attempt.ID, &snap)),
	}, nil
}

// RecordAnswer upserts the single answer row for (attempt, question); the
// last write wins. Grading happens eagerly but finalize regrades, so the
// timing is interchangeable. The attempt row lock makes the write mutually
// exclusive with a concurrent finalize.
func (s *AttemptService) RecordAnswer(attemptID string, userID uint, questionID string, payload json.RawMessage) error {
	err := s.Repo.Transaction(func(tx *gorm.DB) error {
		a, err := s.Repo.FindByIDForUpdate(tx, attemptID)
		if err != nil {
			return mapNotFound(err, util.ErrAttemptNotFound)
		}
		if userID != 0 && a.UserID != userID {
			return util.ErrPermissionDenied
		}
		if a.Status == model.AttemptExpired {
			return util.ErrAttemptExpired
		}
		if a.IsClosed() {
			return util.ErrAttemptClosed
		}
		if a.DeadlinePassed(time.Now()) {
			return util.ErrAttemptExpired
		}

		snap, err := model.ParseSnapshot(a.Snapshot)
		if err != nil {
			return err
		}
		q, ok := snap.QuestionByID(questionID)
		if !ok {
			return util.ErrQuestionNotFound
		}

		res, err := Grade(q, payload)
		if err != nil {
			return err
		}

		return s.Repo.UpsertAnswer(tx, &model.Answer{
			AttemptID:    attemptID,
			QuestionID:   questionID,
			Payload:      payload,
			PointsEarned: res.PointsEarned,
			IsCorrect:    res.IsCorrect,
			ReviewStatus: res.ReviewStatus,
		})
	})

	// Lazy expiry: the rejected write is the first observer of the missed
	// deadline, so close the attempt with whatever was recorded.
	if errors.Is(err, util.ErrAttemptExpired) {
		if _, expErr := s.FinalizeAttempt(attemptID, 0); expErr != nil {
			logger.Log.Error("lazy expiry failed", zap.String("attemptId", attemptID), zap.Error(expErr))
		}
	}
	return err
}

// FinalizeAttempt performs the open -> closed transition exactly once. The
// winner grades every snapshot question (unanswered score zero) and persists
// the aggregate; every other caller, before or after, receives the stored
// result. An attempt past its deadline closes as expired instead of
// submitted; recorded answers are still graded, never discarded.
func (s *AttemptService) FinalizeAttempt(attemptID string, userID uint) (*FinalizeResult, error) {
	a, err := s.Repo.FindByID(attemptID)
	if err != nil {
		return nil, mapNotFound(err, util.ErrAttemptNotFound)
	}
	if userID != 0 && a.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if a.IsClosed() {
		return s.storedResult(a)
	}

	res, won, ev, err := s.closeAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	if !won {
		// Lost the transition race; the winner's result is authoritative.
		a, err = s.Repo.FindByID(attemptID)
		if err != nil {
			return nil, err
		}
		return s.storedResult(a)
	}

	monitoring.AttemptsClosed.WithLabelValues(res.Status).Inc()
	s.Events.PublishGraded(ev)
	if s.Stats != nil {
		s.Stats.InvalidateDefinition(a.DefinitionID)
	}
	logger.Log.Info("attempt closed",
		zap.String("attemptId", attemptID),
		zap.String("status", res.Status),
		zap.Int("score", res.TotalEarned),
		zap.Int("percentage", res.Percentage),
		zap.Bool("passed", res.IsPassed))
	return res, nil
}

func (s *AttemptService) closeAttempt(attemptID string) (*FinalizeResult, bool, GradedEvent, error) {
	var (
		result *FinalizeResult
		ev     GradedEvent
		won    bool
	)

	err := s.Repo.Transaction(func(tx *gorm.DB) error {
		a, err := s.Repo.FindByIDForUpdate(tx, attemptID)
		if err != nil {
			return err
		}
		if a.IsClosed() {
			return nil
		}

		now := time.Now()
		snap, err := model.ParseSnapshot(a.Snapshot)
		if err != nil {
			return err
		}

		answers, err := s.Repo.FindAnswersTx(tx, attemptID)
		if err != nil {
			return err
		}

		gradeStart := time.Now()
		answerMap := make(map[string]*model.Answer, len(answers))
		for i := range answers {
			ans := &answers[i]
			// Finalize recomputes every auto grade from the snapshot;
			// reviewer-resolved points are kept as-is.
			if ans.ReviewStatus != model.ReviewReviewed {
				if q, ok := snap.QuestionByID(ans.QuestionID); ok {
					if res, gerr := Grade(q, ans.Payload); gerr == nil {
						ans.PointsEarned = res.PointsEarned
						ans.IsCorrect = res.IsCorrect
						ans.ReviewStatus = res.ReviewStatus
						if err := s.Repo.SaveAnswerTx(tx, ans); err != nil {
							return err
						}
					}
				}
			}
			answerMap[ans.QuestionID] = ans
		}

		agg, err := Aggregate(snap, answerMap)
		if err != nil {
			return err
		}
		monitoring.GradingDuration.Observe(time.Since(gradeStart).Seconds())

		status := attemptStatusFor(agg.PendingReview)
		closedAt := now
		if a.DeadlinePassed(now) {
			// An expired attempt ended at its deadline, not when the sweep or
			// a late read got around to observing it.
			status = model.AttemptExpired
			closedAt = *a.DeadlineAt
		}
		version := a.FinalizeVersion + 1

		ok, err := s.Repo.CloseAttempt(tx, attemptID, map[string]interface{}{
			"status":           status,
			"submitted_at":     closedAt,
			"score":            agg.TotalEarned,
			"percentage":       agg.Percentage,
			"is_passed":        agg.IsPassed,
			"finalize_version": version,
		})
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		won = true
		result = &FinalizeResult{
			AttemptID:       attemptID,
			Status:          status,
			SubmittedAt:     &closedAt,
			AggregateResult: agg,
		}
		ev = GradedEvent{
			UserID:          a.UserID,
			DefinitionID:    a.DefinitionID,
			AttemptID:       attemptID,
			AttemptNumber:   a.AttemptNumber,
			Score:           agg.TotalEarned,
			Percentage:      agg.Percentage,
			IsPassed:        agg.IsPassed,
			Status:          status,
			FinalizeVersion: version,
			OccurredAt:      now,
		}
		return nil
	})

	return result, won, ev, err
}

// storedResult rebuilds the per-question breakdown for an already-closed
// attempt; the attempt-level fields come from the stored row so repeated
// finalize calls return identical results.
func (s *AttemptService) storedResult(a *model.Attempt) (*FinalizeResult, error) {
	snap, err := model.ParseSnapshot(a.Snapshot)
	if err != nil {
		return nil, err
	}
	answers, err := s.Repo.FindAnswers(a.ID)
	if err != nil {
		return nil, err
	}
	answerMap := make(map[string]*model.Answer, len(answers))
	for i := range answers {
		answerMap[answers[i].QuestionID] = &answers[i]
	}

	agg, err := Aggregate(snap, answerMap)
	if err != nil {
		return nil, err
	}
	agg.TotalEarned = a.Score
	agg.Percentage = a.Percentage
	agg.IsPassed = a.IsPassed

	return &FinalizeResult{
		AttemptID:       a.ID,
		Status:          a.Status,
		SubmittedAt:     a.SubmittedAt,
		AggregateResult: agg,
	}, nil
}

// GetAttempt serves the student view. Reading an open attempt past its
// deadline expires it first (lazy expiry), so the caller always observes a
// consistent terminal state.
func (s *AttemptService) GetAttempt(attemptID string, userID uint) (*AttemptView, error) {
	a, err := s.Repo.FindByID(attemptID)
	if err != nil {
		return nil, mapNotFound(err, util.ErrAttemptNotFound)
	}
	if userID != 0 && a.UserID != userID {
		return nil, util.ErrPermissionDenied
	}

	now := time.Now()
	if a.Status == model.AttemptOpen && a.DeadlinePassed(now) {
		if _, err := s.FinalizeAttempt(attemptID, 0); err != nil {
			return nil, err
		}
		if a, err = s.Repo.FindByID(attemptID); err != nil {
			return nil, err
		}
	}

	snap, err := model.ParseSnapshot(a.Snapshot)
	if err != nil {
		return nil, err
	}
	answers, err := s.Repo.FindAnswers(attemptID)
	if err != nil {
		return nil, err
	}

	view := &AttemptView{
		AttemptID:     a.ID,
		DefinitionID:  a.DefinitionID,
		AttemptNumber: a.AttemptNumber,
		Status:        a.Status,
		StartedAt:     a.StartedAt,
		DeadlineAt:    a.DeadlineAt,
		SubmittedAt:   a.SubmittedAt,
		Questions:     toPresentedQuestions(PresentQuestions(a.ID, snap)),
	}

	if a.Status == model.AttemptOpen && a.DeadlineAt != nil {
		remaining := int(a.DeadlineAt.Sub(now).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		view.RemainingSeconds = &remaining
	}

	closed := a.IsClosed()
	for _, ans := range answers {
		rv := RecordedAnswerView{
			QuestionID: ans.QuestionID,
			Payload:    ans.Payload,
		}
		if closed {
			rv.PointsEarned = ans.PointsEarned
			rv.IsCorrect = ans.IsCorrect
			rv.ReviewStatus = ans.ReviewStatus
			rv.Feedback = ans.Feedback
		}
		view.MyAnswers = append(view.MyAnswers, rv)
	}

	if closed {
		res, err := s.storedResult(a)
		if err != nil {
			return nil, err
		}
		view.Result = res
		if snap.ShowAnswers {
			view.Revealed = revealQuestions(snap)
		}
	}
	return view, nil
}

// ReviewAnswer resolves one manually graded answer and re-aggregates the
// attempt; the pass flag may flip. Emits a fresh graded event with a bumped
// finalize version. The whole read-recompute-write runs under the attempt row
// lock, so concurrent reviews of the same attempt serialize: each sees the
// previous one's answer and takes a distinct finalize version.
func (s *AttemptService) ReviewAnswer(attemptID, questionID string, points int, feedback string) (*FinalizeResult, error) {
	var (
		result *FinalizeResult
		ev     GradedEvent
	)

	err := s.Repo.Transaction(func(tx *gorm.DB) error {
		a, err := s.Repo.FindByIDForUpdate(tx, attemptID)
		if err != nil {
			return mapNotFound(err, util.ErrAttemptNotFound)
		}
		if !a.IsClosed() {
			return util.Validationf("attempt %s is still open; it must be finalized before review", attemptID)
		}

		snap, err := model.ParseSnapshot(a.Snapshot)
		if err != nil {
			return err
		}
		q, ok := snap.QuestionByID(questionID)
		if !ok {
			return util.ErrQuestionNotFound
		}
		if !model.IsManualType(q.QuestionType) {
			return util.Validationf("question %s is auto-graded, not reviewable", questionID)
		}
		if points < 0 || points > q.Points {
			return util.Validationf("points must be within [0, %d], got %d", q.Points, points)
		}

		ans, err := s.Repo.FindAnswerTx(tx, attemptID, questionID)
		if err != nil {
			return mapNotFound(err, util.ErrAnswerNotFound)
		}

		ans.PointsEarned = &points
		ans.ReviewStatus = model.ReviewReviewed
		ans.Feedback = feedback
		if err := s.Repo.SaveAnswerTx(tx, ans); err != nil {
			return err
		}

		answers, err := s.Repo.FindAnswersTx(tx, attemptID)
		if err != nil {
			return err
		}
		answerMap := make(map[string]*model.Answer, len(answers))
		for i := range answers {
			answerMap[answers[i].QuestionID] = &answers[i]
		}
		agg, err := Aggregate(snap, answerMap)
		if err != nil {
			return err
		}

		status := a.Status
		if status != model.AttemptExpired {
			status = attemptStatusFor(agg.PendingReview)
		}
		version := a.FinalizeVersion + 1

		if err := s.Repo.UpdateAggregateTx(tx, attemptID, map[string]interface{}{
			"status":           status,
			"score":            agg.TotalEarned,
			"percentage":       agg.Percentage,
			"is_passed":        agg.IsPassed,
			"finalize_version": version,
		}); err != nil {
			return err
		}

		result = &FinalizeResult{
			AttemptID:       attemptID,
			Status:          status,
			SubmittedAt:     a.SubmittedAt,
			AggregateResult: agg,
		}
		ev = GradedEvent{
			UserID:          a.UserID,
			DefinitionID:    a.DefinitionID,
			AttemptID:       attemptID,
			AttemptNumber:   a.AttemptNumber,
			Score:           agg.TotalEarned,
			Percentage:      agg.Percentage,
			IsPassed:        agg.IsPassed,
			Status:          status,
			FinalizeVersion: version,
			OccurredAt:      time.Now(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Events.PublishGraded(ev)
	if s.Stats != nil {
		s.Stats.InvalidateDefinition(ev.DefinitionID)
	}
	logger.Log.Info("answer reviewed",
		zap.String("attemptId", attemptID),
		zap.String("questionId", questionID),
		zap.Int("points", points))

	return result, nil
}

// ExpireStale closes every open attempt whose deadline has passed; the
// periodic sweep and the manual script both call it.
func (s *AttemptService) ExpireStale(limit int) (int, error) {
	stale, err := s.Repo.ListOpenPastDeadline(time.Now(), limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, a := range stale {
		if _, err := s.FinalizeAttempt(a.ID, 0); err != nil {
			logger.Log.Error("expiry sweep failed for attempt",
				zap.String("attemptId", a.ID), zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *AttemptService) ListAttempts(definitionID string, page, limit int, status string) ([]model.Attempt, int64, error) {
	return s.Repo.ListByDefinition(definitionID, page, limit, status)
}

func (s *AttemptService) MyAttempts(userID uint, definitionID string) ([]model.Attempt, error) {
	return s.Repo.ListByUser(userID, definitionID)
}

// ReviewDetail is the teacher view: full snapshot questions (with answer
// material) plus the recorded answers.
type ReviewDetail struct {
	Attempt   *model.Attempt           `json:"attempt"`
	Questions []model.SnapshotQuestion `json:"questions"`
	Answers   []model.Answer           `json:"answers"`
}

func (s *AttemptService) GetAttemptForReview(attemptID string) (*ReviewDetail, error) {
	a, err := s.Repo.FindByID(attemptID)
	if err != nil {
		return nil, mapNotFound(err, util.ErrAttemptNotFound)
	}
	snap, err := model.ParseSnapshot(a.Snapshot)
	if err != nil {
		return nil, err
	}
	answers, err := s.Repo.FindAnswers(attemptID)
	if err != nil {
		return nil, err
	}
	return &ReviewDetail{Attempt: a, Questions: snap.Questions, Answers: answers}, nil
}

func toPresentedQuestions(questions []model.SnapshotQuestion) []PresentedQuestion {
	out := make([]PresentedQuestion, 0, len(questions))
	for _, q := range questions {
		pq := PresentedQuestion{
			ID:           q.ID,
			QuestionType: q.QuestionType,
			Content:      q.Content,
			Points:       q.Points,
		}
		for _, o := range q.Options {
			pq.Options = append(pq.Options, PresentedOption{ID: o.ID, Content: o.Content})
		}
		if q.QuestionType == model.QuestionMatching {
			for _, p := range q.Pairs {
				pq.LeftItems = append(pq.LeftItems, p.LeftItem)
				pq.RightItems = append(pq.RightItems, p.RightItem)
			}
			// Right column sorted so the presented order never mirrors the
			// stored pairing.
			sort.Strings(pq.RightItems)
		}
		out = append(out, pq)
	}
	return out
}

func revealQuestions(snap *model.DefinitionSnapshot) []RevealedQuestion {
	out := make([]RevealedQuestion, 0, len(snap.Questions))
	for _, q := range snap.Questions {
		rq := RevealedQuestion{
			QuestionID:  q.ID,
			Explanation: q.Explanation,
			Pairs:       q.Pairs,
		}
		for _, o := range q.Options {
			if o.IsCorrect {
				rq.CorrectOptionIDs = append(rq.CorrectOptionIDs, o.ID)
			}
		}
		out = append(out, rq)
	}
	return out
}
