package aluno_service

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"personal-connect/internal/models"
	"personal-connect/internal/repository"
	"personal-connect/internal/service"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const reconcileParallelism = 4

type routineWorkouts struct {
	routineID string
	nested    []repository.Document
	root      []repository.Document
}

// Reconcile copies the trainer's nested tree of one student onto the
// flattened tree wherever the flattened copy is missing or differs.
func (r *rosterService) Reconcile(ctx context.Context, studentID string) (service.ReconcileReport, error) {
	report := service.ReconcileReport{StudentID: studentID}
	cred := r.session.Current()
	if cred == nil {
		return report, service.ErrNotAuthenticated
	}
	personalID := cred.UID

	var (
		nestedStudent, rootStudent   repository.Document
		nestedRoutines, rootRoutines []repository.Document
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		nestedStudent, err = r.students.GetNested(gctx, personalID, studentID)
		return err
	})
	g.Go(func() (err error) {
		rootStudent, err = r.students.GetRoot(gctx, studentID)
		return err
	})
	g.Go(func() (err error) {
		nestedRoutines, err = r.routines.ListNested(gctx, personalID, studentID)
		return err
	})
	g.Go(func() (err error) {
		rootRoutines, err = r.routines.ListRoot(gctx, studentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("load aluno %s: %w", studentID, err)
	}
	if !nestedStudent.Exists {
		return report, ErrStudentNotFound
	}

	workouts := make([]routineWorkouts, len(nestedRoutines))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(reconcileParallelism)
	for i, doc := range nestedRoutines {
		i, routineID := i, doc.ID
		g.Go(func() error {
			nested, err := r.workouts.ListNested(gctx, personalID, studentID, routineID)
			if err != nil {
				return err
			}
			root, err := r.workouts.ListRoot(gctx, studentID, routineID)
			if err != nil {
				return err
			}
			workouts[i] = routineWorkouts{routineID: routineID, nested: nested, root: root}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("load treinos of aluno %s: %w", studentID, err)
	}

	var errs error
	nested := models.StudentFromData(studentID, nestedStudent.Data)
	if !rootStudent.Exists || !sameStudent(nested, rootStudent, personalID) {
		if err := r.students.SetRoot(ctx, personalID, nested); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("aluno %s: %w", studentID, err))
		} else {
			report.StudentRepaired = true
		}
	}

	roots := byID(rootRoutines)
	for _, doc := range nestedRoutines {
		root, ok := roots[doc.ID]
		if ok && sameRoutine(doc, root) {
			continue
		}
		if err := r.routines.SetRoot(ctx, studentID, doc.ID, doc.Data); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("rotina %s: %w", doc.ID, err))
			continue
		}
		report.RoutinesRepaired = append(report.RoutinesRepaired, doc.ID)
	}

	for _, rw := range workouts {
		roots := byID(rw.root)
		for _, doc := range rw.nested {
			root, ok := roots[doc.ID]
			if ok && sameWorkout(doc, root) {
				continue
			}
			if err := r.workouts.SetRoot(ctx, studentID, rw.routineID, doc.ID, doc.Data); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("treino %s/%s: %w", rw.routineID, doc.ID, err))
				continue
			}
			report.WorkoutsRepaired = append(report.WorkoutsRepaired, rw.routineID+"/"+doc.ID)
		}
	}

	r.log.Info("reconciled aluno",
		"alunoId", studentID,
		"repaired", report.Repaired(),
		"failed", len(multierr.Errors(errs)),
	)
	return report, errs
}

func byID(docs []repository.Document) map[string]repository.Document {
	m := make(map[string]repository.Document, len(docs))
	for _, d := range docs {
		m[d.ID] = d
	}
	return m
}

func sameStudent(nested models.Student, root repository.Document, personalID string) bool {
	if s, _ := root.Data["personalId"].(string); s != personalID {
		return false
	}
	return nested == models.StudentFromData(nested.ID, root.Data)
}

func sameRoutine(a, b repository.Document) bool {
	ra, rb := models.RoutineFromData(a.ID, a.Data), models.RoutineFromData(b.ID, b.Data)
	if !ra.DataCriacao.Equal(rb.DataCriacao) {
		return false
	}
	ra.DataCriacao, rb.DataCriacao = time.Time{}, time.Time{}
	return ra == rb
}

func sameWorkout(a, b repository.Document) bool {
	wa, wb := models.WorkoutFromData(a.ID, a.Data), models.WorkoutFromData(b.ID, b.Data)
	return wa.Musculo == wb.Musculo &&
		wa.DataCriacao.Equal(wb.DataCriacao) &&
		reflect.DeepEqual(wa.Exercicios, wb.Exercicios)
}
