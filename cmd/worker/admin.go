package main

import (
	"context"
	"fmt"

	"github.com/yumyai/roundup/pkg/scheduler"
)

// jobControl is the part of the queue an operator can drive by hand.
type jobControl interface {
	Suspend(ctx context.Context, jobID string) error
	Resume(ctx context.Context, jobID string) error
	Status(ctx context.Context, jobID string) scheduler.Status
}

// runAdmin handles "suspend <job_id>", "resume <job_id>" and
// "status <job_id>". It returns the job's status after the command.
func runAdmin(ctx context.Context, q jobControl, args []string) (scheduler.Status, error) {
	if len(args) != 2 || args[1] == "" {
		return "", fmt.Errorf("usage: worker suspend|resume|status <job_id>")
	}
	cmd, id := args[0], args[1]
	switch cmd {
	case "suspend":
		if err := q.Suspend(ctx, id); err != nil {
			return "", err
		}
	case "resume":
		if err := q.Resume(ctx, id); err != nil {
			return "", err
		}
	case "status":
	default:
		return "", fmt.Errorf("unknown command %q", cmd)
	}
	return q.Status(ctx, id), nil
}
