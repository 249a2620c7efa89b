package command

import (
	"context"
	"fmt"

	"github.com/KaripeHS/BlayStorm-sub001/internal/application/validation"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/student"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/logger"
)

// RegisterStudentCommand creates the progression state of a new student.
type RegisterStudentCommand struct {
	StudentID string `json:"student_id" validate:"required,max=64"`
}

// RegisterStudentResult contains the student state.
type RegisterStudentResult struct {
	State *student.State

	// Created is false when the student was already registered.
	Created bool
}

// RegisterStudentHandler handles the RegisterStudentCommand. It is idempotent.
type RegisterStudentHandler struct {
	students student.Repository
	clock    shared.Clock
	log      *logger.Logger
}

// NewRegisterStudentHandler creates a new RegisterStudentHandler.
func NewRegisterStudentHandler(students student.Repository, clock shared.Clock, log *logger.Logger) *RegisterStudentHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RegisterStudentHandler{
		students: students,
		clock:    clock,
		log:      log.With(logger.Component("register_student")),
	}
}

// Handle executes the register student command.
func (h *RegisterStudentHandler) Handle(ctx context.Context, cmd RegisterStudentCommand) (*RegisterStudentResult, error) {
	if err := validation.Default().Struct("student", "Register", cmd); err != nil {
		return nil, fmt.Errorf("register_student: validation failed: %w", err)
	}

	st, err := student.NewState(cmd.StudentID, h.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("register_student: %w", err)
	}

	if err := h.students.Create(ctx, st); err != nil {
		if !shared.IsAlreadyExists(err) {
			return nil, fmt.Errorf("register_student: failed to create student: %w", err)
		}
		existing, err := h.students.GetByID(ctx, cmd.StudentID)
		if err != nil {
			return nil, fmt.Errorf("register_student: %w", err)
		}
		return &RegisterStudentResult{State: existing}, nil
	}

	h.log.Info("student registered", logger.StudentID(cmd.StudentID))
	return &RegisterStudentResult{State: st, Created: true}, nil
}
