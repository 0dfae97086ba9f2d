package services

import (
	"log/slog"

	"github.com/SAP-F-2025/practice-service/internal/cache"
	"github.com/SAP-F-2025/practice-service/internal/credits"
	"github.com/SAP-F-2025/practice-service/internal/events"
	"github.com/SAP-F-2025/practice-service/internal/practice"
	"github.com/SAP-F-2025/practice-service/internal/repositories"
)

// ServiceManagerConfig gathers everything the services need beyond the repository.
type ServiceManagerConfig struct {
	Credits    CreditServiceConfig
	Submission SubmissionServiceConfig
	Session    SessionServiceConfig

	Generator   QuestionGenerator
	Grader      AnswerGrader
	Images      ImageStore // optional
	Extractor   practice.TextExtractor
	Transcriber practice.Transcriber
	Hub         *credits.Hub
	Estimator   *credits.Estimator
	Cache       *cache.CacheManager // optional
	Publisher   events.EventPublisher
}

type serviceManager struct {
	credit      CreditService
	session     SessionService
	history     HistoryService
	questions   practice.QuestionService
	submissions practice.SubmissionService
}

func NewServiceManager(repo repositories.Repository, cfg ServiceManagerConfig, logger *slog.Logger) ServiceManager {
	if cfg.Hub == nil {
		var balances credits.BalanceCache
		if cfg.Cache != nil {
			balances = cfg.Cache.Balances
		}
		cfg.Hub = credits.NewHub(balances, logger)
	}
	if cfg.Estimator == nil {
		cfg.Estimator = credits.NewEstimator(credits.DefaultTable)
	}

	creditSvc := NewCreditService(repo, cfg.Hub, cfg.Credits, logger)
	questions := NewQuestionService(creditSvc, cfg.Generator, cfg.Estimator, logger)
	submissions := NewSubmissionService(repo, creditSvc, cfg.Grader, cfg.Images, cfg.Publisher, cfg.Submission, logger)

	var questionCache *cache.QuestionCache
	if cfg.Cache != nil {
		questionCache = cfg.Cache.Questions
	}

	sessions := NewSessionService(SessionDependencies{
		Questions:   questions,
		Submissions: submissions,
		Extractor:   cfg.Extractor,
		Transcriber: cfg.Transcriber,
		Credits:     creditSvc,
		Hub:         cfg.Hub,
		Estimator:   cfg.Estimator,
		Cache:       questionCache,
		Publisher:   cfg.Publisher,
	}, cfg.Session, logger)

	return &serviceManager{
		credit:      creditSvc,
		session:     sessions,
		history:     NewHistoryService(repo, logger),
		questions:   questions,
		submissions: submissions,
	}
}

func (m *serviceManager) Credit() CreditService                   { return m.credit }
func (m *serviceManager) Session() SessionService                 { return m.session }
func (m *serviceManager) History() HistoryService                 { return m.history }
func (m *serviceManager) Questions() practice.QuestionService     { return m.questions }
func (m *serviceManager) Submissions() practice.SubmissionService { return m.submissions }
