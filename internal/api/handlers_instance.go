package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/outpost-sh/outpost/internal/auth"
	"github.com/outpost-sh/outpost/internal/events"
	"github.com/outpost-sh/outpost/internal/instance"
)

const maxInstanceNameLength = 100

// Overridable in tests to simulate filesystem failures.
var (
	removeAll  = os.RemoveAll
	removeFile = os.Remove
)

func (s *Server) listInstances(w http.ResponseWriter, r *http.Request) {
	requester := auth.FromContext(r.Context())

	infos := make([]instance.Info, 0)
	for _, inst := range s.registry.List() {
		if requester.Can(auth.ViewInstance(inst.ID())) {
			infos = append(infos, inst.Info())
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreationTime < infos[j].CreationTime
	})

	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) getInstanceInfo(w http.ResponseWriter, r *http.Request) {
	requester := auth.FromContext(r.Context())
	id := instance.ID(chi.URLParam(r, "uuid"))

	inst, ok := s.registry.Get(id)
	if !ok {
		writeError(w, ErrInstanceNotFound, fmt.Sprintf("instance %s does not exist", id))
		return
	}
	if !requester.Can(auth.ViewInstance(id)) {
		writeError(w, ErrPermissionDenied, "you are not allowed to view this instance")
		return
	}

	writeJSON(w, http.StatusOK, inst.Info())
}

// createMinecraftInstance validates the setup request, reserves a unique
// install path, and answers with the new uuid while provisioning continues in
// a detached task.
func (s *Server) createMinecraftInstance(w http.ResponseWriter, r *http.Request) {
	requester := auth.FromContext(r.Context())
	if !requester.Can(auth.CreateInstance()) {
		writeError(w, ErrPermissionDenied, "not authorized to create instances")
		return
	}

	var primitive instance.SetupPrimitive
	if err := json.NewDecoder(r.Body).Decode(&primitive); err != nil {
		writeError(w, ErrMalformedRequest, "invalid request body: "+err.Error())
		return
	}

	primitive.Name = instance.SanitizeName(primitive.Name)
	if primitive.Name == "" {
		writeError(w, ErrMalformedRequest, "name must not be empty")
		return
	}
	if len(primitive.Name) > maxInstanceNameLength {
		writeError(w, ErrMalformedRequest, fmt.Sprintf("name must not be longer than %d characters", maxInstanceNameLength))
		return
	}
	if primitive.Port <= 0 || primitive.Port > 65535 {
		writeError(w, ErrMalformedRequest, fmt.Sprintf("port %d out of range", primitive.Port))
		return
	}

	cfg := primitive.Config("minecraft", s.instancesDir)

	// The uuid is effectively unique already; this loop guards the derived
	// path against name collisions with live instances.
	for s.pathInUse(cfg.Path) {
		cfg.Regenerate(s.instancesDir)
	}

	go s.provisionInstance(cfg, events.ByUser(requester.UID, requester.Username))

	writeJSON(w, http.StatusAccepted, cfg.ID)
}

func (s *Server) pathInUse(path string) bool {
	for _, inst := range s.registry.List() {
		if inst.Path() == path {
			return true
		}
	}
	return false
}

// provisionInstance is the detached creation task. It owns its config copy
// and handles to the shared registry, port pool and bus; nothing from the
// triggering request survives in it. The instance becomes visible only after
// provisioning fully succeeded.
func (s *Server) provisionInstance(cfg instance.SetupConfig, causedBy events.CausedBy) {
	eventID := events.NextID()
	s.bus.Send(events.Event{
		EventID:  eventID,
		CausedBy: causedBy,
		Start: &events.ProgressionStart{
			Name:           fmt.Sprintf("Setting up Minecraft server %s", cfg.Name),
			ProducerID:     string(cfg.ID),
			TotalWorkUnits: 10,
			InstanceCreation: &events.InstanceCreation{
				InstanceID: string(cfg.ID),
				Name:       cfg.Name,
				Port:       cfg.Port,
				Flavour:    cfg.Flavour,
				GameType:   cfg.GameType,
			},
		},
	})

	inst, err := s.factory.Create(context.Background(), cfg)
	if err != nil {
		s.bus.Send(events.Event{
			EventID:  eventID,
			CausedBy: causedBy,
			End: &events.ProgressionEnd{
				Success: false,
				Message: fmt.Sprintf("Instance creation failed: %v", err),
			},
		})
		metricCreationsTotal.WithLabelValues("failure").Inc()

		if rmErr := removeAll(cfg.Path); rmErr != nil {
			// The directory could not be discarded: without its marker it will
			// never be registered, but it leaks disk until an operator acts.
			metricCleanupFailures.Inc()
			logrus.WithError(rmErr).WithFields(logrus.Fields{
				"uuid": cfg.ID,
				"path": cfg.Path,
			}).Error("failed to clean up directory of failed instance creation")
		}
		return
	}

	info := inst.Info()
	s.bus.Send(events.Event{
		EventID:  eventID,
		CausedBy: causedBy,
		End: &events.ProgressionEnd{
			Success:         true,
			Message:         "Instance creation success",
			InstanceCreated: &info,
		},
	})

	s.ports.Allocate(cfg.Port)
	s.registry.Insert(inst)
	metricInstancesLive.Set(float64(s.registry.Len()))
	metricCreationsTotal.WithLabelValues("success").Inc()
}

// deleteInstance removes a Stopped instance. Removing the config marker is
// the point of no return: before it, any failure aborts cleanly; after it,
// the registry entry is gone no matter what happens to the directory.
func (s *Server) deleteInstance(w http.ResponseWriter, r *http.Request) {
	requester := auth.FromContext(r.Context())
	if !requester.Can(auth.DeleteInstance()) {
		writeError(w, ErrPermissionDenied, "not authorized to delete instances")
		return
	}

	id := instance.ID(chi.URLParam(r, "uuid"))
	inst, ok := s.registry.Get(id)
	if !ok {
		writeError(w, ErrInstanceNotFound, fmt.Sprintf("instance %s does not exist", id))
		return
	}
	if inst.State() != instance.StateStopped {
		writeError(w, ErrInvalidInstanceState, "instance is not stopped, cannot remove")
		return
	}

	causedBy := events.ByUser(requester.UID, requester.Username)
	eventID := events.NextID()
	s.bus.Send(events.Event{
		EventID:  eventID,
		CausedBy: causedBy,
		Start: &events.ProgressionStart{
			Name:           fmt.Sprintf("Deleting instance %s", inst.Name()),
			ProducerID:     string(id),
			TotalWorkUnits: 10,
		},
	})

	if err := removeFile(filepath.Join(inst.Path(), instance.ConfigFileName)); err != nil {
		s.bus.Send(events.Event{
			EventID:  eventID,
			CausedBy: causedBy,
			End: &events.ProgressionEnd{
				Success: false,
				Message: "Failed to remove instance config, instance not deleted",
			},
		})
		metricDeletionsTotal.WithLabelValues("aborted").Inc()
		writeError(w, ErrFailedToRemoveFileOrDir, fmt.Sprintf("failed to remove %s: %v, instance not deleted", instance.ConfigFileName, err))
		return
	}

	s.ports.Release(inst.Port())
	s.registry.Remove(id)
	metricInstancesLive.Set(float64(s.registry.Len()))

	if err := removeAll(inst.Path()); err != nil {
		s.bus.Send(events.Event{
			EventID:  eventID,
			CausedBy: causedBy,
			End: &events.ProgressionEnd{
				Success: false,
				Message: "Could not delete some or all of instance's files",
			},
		})
		metricDeletionsTotal.WithLabelValues("partial").Inc()
		writeError(w, ErrFailedToRemoveFileOrDir, fmt.Sprintf("could not remove instance files: %v", err))
		return
	}

	// The instance is gone; stale per-user view grants are only noise.
	if err := s.users.RevokeInstanceViewAll(string(id)); err != nil {
		logrus.WithError(err).WithField("uuid", id).Warn("failed to drop view grants of deleted instance")
	}

	s.bus.Send(events.Event{
		EventID:  eventID,
		CausedBy: causedBy,
		End: &events.ProgressionEnd{
			Success:         true,
			Message:         "Deleted instance",
			InstanceDeleted: &events.InstanceDelete{InstanceID: string(id)},
		},
	})
	metricDeletionsTotal.WithLabelValues("success").Inc()

	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) startInstance(w http.ResponseWriter, r *http.Request) {
	requester := auth.FromContext(r.Context())
	id := instance.ID(chi.URLParam(r, "uuid"))

	inst, ok := s.registry.Get(id)
	if !ok {
		writeError(w, ErrInstanceNotFound, fmt.Sprintf("instance %s does not exist", id))
		return
	}
	if !requester.Can(auth.StartInstance(id)) {
		writeError(w, ErrPermissionDenied, "not authorized to start this instance")
		return
	}

	if err := inst.Start(r.Context()); err != nil {
		writeError(w, ErrInvalidInstanceState, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) stopInstance(w http.ResponseWriter, r *http.Request) {
	requester := auth.FromContext(r.Context())
	id := instance.ID(chi.URLParam(r, "uuid"))

	inst, ok := s.registry.Get(id)
	if !ok {
		writeError(w, ErrInstanceNotFound, fmt.Sprintf("instance %s does not exist", id))
		return
	}
	if !requester.Can(auth.StopInstance(id)) {
		writeError(w, ErrPermissionDenied, "not authorized to stop this instance")
		return
	}

	if err := inst.Stop(r.Context()); err != nil {
		writeError(w, ErrInvalidInstanceState, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
