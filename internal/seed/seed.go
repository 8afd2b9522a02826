package seed

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/repository"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// SeedInitialAdmin 确保初始管理员存在，已存在时不做任何修改
func SeedInitialAdmin(cfg *config.Config, r *repository.Repository) error {
	if _, err := r.GetEmployeeByUsername(cfg.InitialAdmin.Username); err == nil {
		return nil
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(cfg.InitialAdmin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := &domain.Employee{
		Username:     cfg.InitialAdmin.Username,
		PasswordHash: string(passwordHash),
		FullName:     cfg.InitialAdmin.FullName,
		Email:        cfg.InitialAdmin.Email,
		Role:         domain.RoleAdmin,
		BranchID:     1,
		IsActive:     true,
	}

	return r.CreateEmployee(admin)
}

// SeedDemoBranch 为指定门店生成一个值班经理、若干店员、基础班次和未来一个月的排班
func SeedDemoBranch(cfg *config.Config, r *repository.Repository, branchID int64, employeeCount int) {
	// 值班经理
	manager, err := utils.GenerateRandomEmployee(cfg.Seed.Employee.Password, cfg.Email.UserDomain, branchID)
	if err != nil {
		slog.Error("无法生成值班经理", "error", err)
		return
	}
	manager.Role = domain.RoleManager

	if err := r.CreateEmployee(manager); err != nil {
		slog.Error("无法插入值班经理", "error", err)
		return
	}

	// 店员，汇报给上面的值班经理
	employees := make([]*domain.Employee, 0, employeeCount)
	for i := 0; i < employeeCount; i++ {
		employee, err := utils.GenerateRandomEmployee(cfg.Seed.Employee.Password, cfg.Email.UserDomain, branchID)
		if err != nil {
			slog.Error("无法生成店员", "error", err)
			continue
		}
		employee.ReportingManagerID = &manager.ID

		if err := r.CreateEmployee(employee); err != nil {
			slog.Error("无法插入店员", "error", err)
			continue
		}

		employees = append(employees, employee)
	}

	if len(employees) == 0 {
		slog.Error("没有插入任何店员，跳过排班生成")
		return
	}

	// 班次
	shifts := utils.GenerateRandomShifts(branchID)
	inserted := make([]*domain.ShiftDefinition, 0, len(shifts))
	for _, shift := range shifts {
		if err := r.CreateShift(shift); err != nil {
			slog.Error("无法插入班次", "error", err, "shift", shift.Name)
			continue
		}
		inserted = append(inserted, shift)
	}

	if len(inserted) == 0 {
		slog.Error("没有插入任何班次，跳过排班生成")
		return
	}

	// 为每个店员绑定一个班次，从明天起生效一个月
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	end := start.AddDate(0, 1, 0)

	cnt := 0
	for _, employee := range employees {
		shift := inserted[rand.Intn(len(inserted))]

		assignment := &domain.ShiftAssignment{
			EmployeeID: employee.ID,
			ShiftID:    shift.ID,
			StartDate:  start,
			EndDate:    &end,
			IsActive:   true,
		}

		if err := r.CreateAssignment(assignment); err != nil {
			slog.Error("无法插入排班", "error", err)
			continue
		}

		cnt++
	}

	slog.Info("门店演示数据生成完成", "branch", branchID, "employees", len(employees), "shifts", len(inserted), "assignments", cnt)
}
