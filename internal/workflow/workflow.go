package workflow

import (
	"time"

	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

// Store 工作流所依赖的持久化契约，由 repository.Repository 实现。
// 所有带版本检查的更新在版本不匹配时返回 domain.ErrStaleState，
// 这是保证"同一请求上至多一个转移能提交"的唯一机制
type Store interface {
	GetEmployeeByID(id int64) (*domain.Employee, error)
	GetShiftByID(id int64) (*domain.ShiftDefinition, error)

	GetAssignmentByID(id int64) (*domain.ShiftAssignment, error)
	ListAssignments(employeeID int64, from, to time.Time) ([]*domain.ShiftAssignment, error)
	ApplySwap(a, b *domain.ShiftAssignment) error
	ApplyCoverage(orig *domain.ShiftAssignment, coveringEmployeeID int64, from time.Time) (*domain.ShiftAssignment, error)

	CreateSwapRequest(req *domain.SwapRequest) error
	GetSwapRequestByID(id int64) (*domain.SwapRequest, error)
	UpdateSwapRequest(req *domain.SwapRequest) error
	UpsertSwapResponse(resp *domain.SwapResponse) error
	GetSwapResponses(requestID int64) ([]*domain.SwapResponse, error)
	GetSwapResponseByID(id int64) (*domain.SwapResponse, error)

	CreateCoverageRequest(req *domain.CoverageRequest) error
	GetCoverageRequestByID(id int64) (*domain.CoverageRequest, error)
	UpdateCoverageRequest(req *domain.CoverageRequest) error
	UpsertCoverageResponse(resp *domain.CoverageResponse) error
	GetCoverageResponses(requestID int64) ([]*domain.CoverageResponse, error)
}

// Notifier 通知分发器。投递失败只记录日志，
// 绝不阻塞或回滚工作流转移
type Notifier interface {
	Notify(msg domain.NotificationMessage)
}

// Board 分店广播看板：开放中的请求按分店缓存，
// 供同分店员工快速浏览，紧急请求立即推送
type Board interface {
	PublishOpenRequest(branchID int64, entry domain.BoardEntry)
	RemoveOpenRequest(branchID int64, kind string, requestID int64)
}

type Engine struct {
	cfg      *config.Config
	store    Store
	notifier Notifier
	board    Board
}

func NewEngine(cfg *config.Config, store Store, notifier Notifier, board Board) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		board:    board,
	}
}

// getActiveEmployee 获取员工并确认其在职
func (e *Engine) getActiveEmployee(id int64) (*domain.Employee, error) {
	employee, err := e.store.GetEmployeeByID(id)
	if err != nil {
		return nil, err
	}
	if !employee.IsActive {
		return nil, domain.NewValidationError("员工 %s 已离职", employee.FullName)
	}
	return employee, nil
}

// getOwnedActiveAssignment 获取绑定并确认其属于指定员工且仍然活跃
func (e *Engine) getOwnedActiveAssignment(assignmentID, employeeID int64) (*domain.ShiftAssignment, error) {
	assignment, err := e.store.GetAssignmentByID(assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.EmployeeID != employeeID {
		return nil, domain.NewValidationError("班次绑定 %d 不属于该员工", assignmentID)
	}
	if !assignment.IsActive {
		return nil, domain.NewValidationError("班次绑定 %d 已失效", assignmentID)
	}
	return assignment, nil
}

// canDecide 判断 manager 是否对 parties 中任意一方有审批权：
// 任意一方的汇报经理都可以审批，先提交决定者生效；管理员始终有权
func canDecide(manager *domain.Employee, parties ...*domain.Employee) bool {
	if manager.Role == domain.RoleAdmin {
		return true
	}
	for _, p := range parties {
		if p != nil && manager.IsManagerOf(p) {
			return true
		}
	}
	return false
}

// notifyEmployee 给单个员工发一条通知，收件人为空则跳过
func (e *Engine) notifyEmployee(employee *domain.Employee, eventType string, data any) {
	if employee == nil || employee.Email == "" {
		return
	}
	e.notifier.Notify(domain.NotificationMessage{
		Type: eventType,
		To:   employee.Email,
		Data: data,
	})
}

// notifyManagers 通知各方的汇报经理，同一经理只通知一次
func (e *Engine) notifyManagers(eventType string, data any, parties ...*domain.Employee) {
	seen := make(map[int64]bool)
	for _, p := range parties {
		if p == nil || p.ReportingManagerID == nil {
			continue
		}
		if seen[*p.ReportingManagerID] {
			continue
		}
		seen[*p.ReportingManagerID] = true

		manager, err := e.store.GetEmployeeByID(*p.ReportingManagerID)
		if err != nil {
			continue
		}
		e.notifyEmployee(manager, eventType, data)
	}
}
