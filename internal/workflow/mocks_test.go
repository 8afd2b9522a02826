package workflow

import (
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

// mockStore 内存版 Store 实现，复刻 repository 的版本检查语义：
// 读取返回副本，带版本检查的更新在版本不匹配时返回 ErrStaleState
type mockStore struct {
	employees         map[int64]*domain.Employee
	shifts            map[int64]*domain.ShiftDefinition
	assignments       map[int64]*domain.ShiftAssignment
	swapRequests      map[int64]*domain.SwapRequest
	swapResponses     map[int64]*domain.SwapResponse
	coverageRequests  map[int64]*domain.CoverageRequest
	coverageResponses map[int64]*domain.CoverageResponse

	nextID int64

	// 注入的错误，用于模拟存储层的失败
	applySwapErr     error
	applyCoverageErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		employees:         make(map[int64]*domain.Employee),
		shifts:            make(map[int64]*domain.ShiftDefinition),
		assignments:       make(map[int64]*domain.ShiftAssignment),
		swapRequests:      make(map[int64]*domain.SwapRequest),
		swapResponses:     make(map[int64]*domain.SwapResponse),
		coverageRequests:  make(map[int64]*domain.CoverageRequest),
		coverageResponses: make(map[int64]*domain.CoverageResponse),
	}
}

func (m *mockStore) genID() int64 {
	m.nextID++
	return m.nextID
}

func (m *mockStore) addEmployee(e domain.Employee) *domain.Employee {
	if e.ID == 0 {
		e.ID = m.genID()
	}
	e.Version = 1
	m.employees[e.ID] = &e
	return &e
}

func (m *mockStore) addShift(s domain.ShiftDefinition) *domain.ShiftDefinition {
	if s.ID == 0 {
		s.ID = m.genID()
	}
	s.IsActive = true
	s.Version = 1
	m.shifts[s.ID] = &s
	return &s
}

func (m *mockStore) addAssignment(a domain.ShiftAssignment) *domain.ShiftAssignment {
	if a.ID == 0 {
		a.ID = m.genID()
	}
	a.IsActive = true
	a.Version = 1
	m.assignments[a.ID] = &a
	return &a
}

func (m *mockStore) GetEmployeeByID(id int64) (*domain.Employee, error) {
	e, ok := m.employees[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (m *mockStore) GetShiftByID(id int64) (*domain.ShiftDefinition, error) {
	s, ok := m.shifts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (m *mockStore) GetAssignmentByID(id int64) (*domain.ShiftAssignment, error) {
	a, ok := m.assignments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (m *mockStore) ListAssignments(employeeID int64, from, to time.Time) ([]*domain.ShiftAssignment, error) {
	result := make([]*domain.ShiftAssignment, 0)
	for _, a := range m.assignments {
		if a.EmployeeID != employeeID || !a.IsActive {
			continue
		}
		if !a.IntersectsRange(from, to) {
			continue
		}
		clone := *a
		result = append(result, &clone)
	}
	return result, nil
}

func (m *mockStore) ApplySwap(a, b *domain.ShiftAssignment) error {
	if m.applySwapErr != nil {
		return m.applySwapErr
	}

	sa, okA := m.assignments[a.ID]
	sb, okB := m.assignments[b.ID]
	if !okA || !okB {
		return domain.ErrStaleState
	}
	if !sa.IsActive || !sb.IsActive || sa.Version != a.Version || sb.Version != b.Version {
		return domain.ErrStaleState
	}

	sa.ShiftID, sb.ShiftID = sb.ShiftID, sa.ShiftID
	sa.Version++
	sb.Version++

	a.ShiftID, b.ShiftID = sa.ShiftID, sb.ShiftID
	a.Version, b.Version = sa.Version, sb.Version
	return nil
}

func (m *mockStore) ApplyCoverage(orig *domain.ShiftAssignment, coveringEmployeeID int64, from time.Time) (*domain.ShiftAssignment, error) {
	if m.applyCoverageErr != nil {
		return nil, m.applyCoverageErr
	}

	stored, ok := m.assignments[orig.ID]
	if !ok {
		return nil, domain.ErrStaleState
	}
	if !stored.IsActive || stored.Version != orig.Version {
		return nil, domain.ErrStaleState
	}

	end := from
	stored.IsActive = false
	stored.EndDate = &end
	stored.Version++
	orig.IsActive = false
	orig.EndDate = &end
	orig.Version = stored.Version

	replacement := m.addAssignment(domain.ShiftAssignment{
		EmployeeID: coveringEmployeeID,
		ShiftID:    stored.ShiftID,
		StartDate:  from,
		EndDate:    nil,
	})
	clone := *replacement
	return &clone, nil
}

func (m *mockStore) CreateSwapRequest(req *domain.SwapRequest) error {
	req.ID = m.genID()
	req.Version = 1
	req.CreatedAt = time.Now()
	clone := *req
	m.swapRequests[req.ID] = &clone
	return nil
}

func (m *mockStore) GetSwapRequestByID(id int64) (*domain.SwapRequest, error) {
	req, ok := m.swapRequests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (m *mockStore) UpdateSwapRequest(req *domain.SwapRequest) error {
	stored, ok := m.swapRequests[req.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != req.Version {
		return domain.ErrStaleState
	}
	req.Version++
	clone := *req
	m.swapRequests[req.ID] = &clone
	return nil
}

func (m *mockStore) UpsertSwapResponse(resp *domain.SwapResponse) error {
	for _, existing := range m.swapResponses {
		if existing.RequestID == resp.RequestID && existing.ResponderID == resp.ResponderID {
			resp.ID = existing.ID
			clone := *resp
			m.swapResponses[resp.ID] = &clone
			return nil
		}
	}
	resp.ID = m.genID()
	clone := *resp
	m.swapResponses[resp.ID] = &clone
	return nil
}

func (m *mockStore) GetSwapResponses(requestID int64) ([]*domain.SwapResponse, error) {
	result := make([]*domain.SwapResponse, 0)
	for _, resp := range m.swapResponses {
		if resp.RequestID == requestID {
			clone := *resp
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (m *mockStore) GetSwapResponseByID(id int64) (*domain.SwapResponse, error) {
	resp, ok := m.swapResponses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *resp
	return &clone, nil
}

func (m *mockStore) CreateCoverageRequest(req *domain.CoverageRequest) error {
	req.ID = m.genID()
	req.Version = 1
	req.CreatedAt = time.Now()
	clone := *req
	m.coverageRequests[req.ID] = &clone
	return nil
}

func (m *mockStore) GetCoverageRequestByID(id int64) (*domain.CoverageRequest, error) {
	req, ok := m.coverageRequests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (m *mockStore) UpdateCoverageRequest(req *domain.CoverageRequest) error {
	stored, ok := m.coverageRequests[req.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != req.Version {
		return domain.ErrStaleState
	}
	req.Version++
	clone := *req
	m.coverageRequests[req.ID] = &clone
	return nil
}

func (m *mockStore) UpsertCoverageResponse(resp *domain.CoverageResponse) error {
	for _, existing := range m.coverageResponses {
		if existing.RequestID == resp.RequestID && existing.ResponderID == resp.ResponderID {
			resp.ID = existing.ID
			clone := *resp
			m.coverageResponses[resp.ID] = &clone
			return nil
		}
	}
	resp.ID = m.genID()
	clone := *resp
	m.coverageResponses[resp.ID] = &clone
	return nil
}

func (m *mockStore) GetCoverageResponses(requestID int64) ([]*domain.CoverageResponse, error) {
	result := make([]*domain.CoverageResponse, 0)
	for _, resp := range m.coverageResponses {
		if resp.RequestID == requestID {
			clone := *resp
			result = append(result, &clone)
		}
	}
	return result, nil
}

type mockNotifier struct {
	messages []domain.NotificationMessage
}

func (m *mockNotifier) Notify(msg domain.NotificationMessage) {
	m.messages = append(m.messages, msg)
}

func (m *mockNotifier) byType(eventType string) []domain.NotificationMessage {
	result := make([]domain.NotificationMessage, 0)
	for _, msg := range m.messages {
		if msg.Type == eventType {
			result = append(result, msg)
		}
	}
	return result
}

type mockBoard struct {
	entries map[string]domain.BoardEntry
}

func newMockBoard() *mockBoard {
	return &mockBoard{entries: make(map[string]domain.BoardEntry)}
}

func boardKey(branchID int64, kind string, requestID int64) string {
	return fmt.Sprintf("%d_%s_%d", branchID, kind, requestID)
}

func (m *mockBoard) PublishOpenRequest(branchID int64, entry domain.BoardEntry) {
	m.entries[boardKey(branchID, entry.Kind, entry.RequestID)] = entry
}

func (m *mockBoard) RemoveOpenRequest(branchID int64, kind string, requestID int64) {
	delete(m.entries, boardKey(branchID, kind, requestID))
}

func (m *mockBoard) has(branchID int64, kind string, requestID int64) bool {
	_, ok := m.entries[boardKey(branchID, kind, requestID)]
	return ok
}

// fixture 测试场景：一号分店的一个值班经理和三名店员。
// alice 持有早班，bob 持有晚班，carol 没有任何排班
type fixture struct {
	cfg      *config.Config
	store    *mockStore
	notifier *mockNotifier
	board    *mockBoard
	engine   *Engine

	manager *domain.Employee
	alice   *domain.Employee
	bob     *domain.Employee
	carol   *domain.Employee

	morning *domain.ShiftDefinition
	evening *domain.ShiftDefinition
	night   *domain.ShiftDefinition

	aliceMorning *domain.ShiftAssignment
	bobEvening   *domain.ShiftAssignment
}

func newFixture() *fixture {
	store := newMockStore()
	notifier := &mockNotifier{}
	board := newMockBoard()

	cfg := &config.Config{}
	cfg.Workflow.CoverageLeadTime = 7200
	cfg.Workflow.BroadcastExpiration = 86400

	f := &fixture{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		board:    board,
		engine:   NewEngine(cfg, store, notifier, board),
	}

	f.manager = store.addEmployee(domain.Employee{
		Username: "manager", FullName: "王经理", Email: "manager@example.com",
		Role: domain.RoleManager, BranchID: 1, IsActive: true,
	})
	f.alice = store.addEmployee(domain.Employee{
		Username: "alice", FullName: "李爱丽", Email: "alice@example.com",
		Role: domain.RoleEmployee, BranchID: 1, ReportingManagerID: &f.manager.ID, IsActive: true,
	})
	f.bob = store.addEmployee(domain.Employee{
		Username: "bob", FullName: "张博", Email: "bob@example.com",
		Role: domain.RoleEmployee, BranchID: 1, ReportingManagerID: &f.manager.ID, IsActive: true,
	})
	f.carol = store.addEmployee(domain.Employee{
		Username: "carol", FullName: "陈卡罗", Email: "carol@example.com",
		Role: domain.RoleEmployee, BranchID: 1, ReportingManagerID: &f.manager.ID, IsActive: true,
	})

	f.morning = store.addShift(domain.ShiftDefinition{Name: "早班", BranchID: 1, StartTime: "09:00:00", EndTime: "13:00:00"})
	f.evening = store.addShift(domain.ShiftDefinition{Name: "晚班", BranchID: 1, StartTime: "18:00:00", EndTime: "22:00:00"})
	f.night = store.addShift(domain.ShiftDefinition{Name: "通宵班", BranchID: 1, StartTime: "22:00:00", EndTime: "06:00:00"})

	start := time.Now().AddDate(0, 0, -7).Truncate(24 * time.Hour)
	f.aliceMorning = store.addAssignment(domain.ShiftAssignment{EmployeeID: f.alice.ID, ShiftID: f.morning.ID, StartDate: start})
	f.bobEvening = store.addAssignment(domain.ShiftAssignment{EmployeeID: f.bob.ID, ShiftID: f.evening.ID, StartDate: start})

	return f
}

func tomorrow() time.Time {
	return time.Now().AddDate(0, 0, 1).Truncate(24 * time.Hour)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
