package handlers

import (
	"field-route-service/internal/api/dto"
	"field-route-service/internal/domain"
	"field-route-service/internal/services"
)

func toStopResponses(stops []domain.Stop) []dto.StopResponse {
	out := make([]dto.StopResponse, 0, len(stops))
	for _, s := range stops {
		r := dto.StopResponse{
			ID:              s.ID,
			Address:         s.Address,
			DurationMinutes: s.EstimatedDurationMinutes,
			SequenceIndex:   s.SequenceIndex,
		}
		if s.ScheduledTime != nil {
			r.ScheduledTime = s.ScheduledTime.String()
		}
		out = append(out, r)
	}
	return out
}

// toTimelineResponse pairs entries with the stops they were computed from;
// the two slices are index-aligned.
func toTimelineResponse(stops []domain.Stop, tl *domain.RouteTimeline) dto.TimelineResponse {
	res := dto.TimelineResponse{
		Date:                tl.Date.Format(domain.DateLayout),
		Entries:             make([]dto.EntryResponse, 0, len(tl.Entries)),
		LeaveHomeBy:         tl.LeaveHomeBy,
		HomeArrival:         tl.HomeArrival,
		TotalDriveSeconds:   tl.TotalDriveSeconds,
		TotalDistanceMeters: tl.TotalDistanceMeters,
	}

	for i, e := range tl.Entries {
		er := dto.EntryResponse{
			StopID:             e.StopID,
			EstimatedArrival:   e.EstimatedArrival,
			ActualStart:        e.ActualStart,
			EstimatedDeparture: e.EstimatedDeparture,
			Status:             string(e.Status),
			DelayMinutes:       e.DelayMinutes,
		}
		if i < len(stops) {
			er.Address = stops[i].Address
			if stops[i].ScheduledTime != nil {
				er.ScheduledTime = stops[i].ScheduledTime.String()
			}
		}
		if e.Travel != nil {
			secs, meters := e.Travel.DurationSeconds, e.Travel.DistanceMeters
			er.TravelSeconds = &secs
			er.TravelMeters = &meters
		}
		if e.Err != nil {
			er.Error = e.Err.Reason
		}
		res.Entries = append(res.Entries, er)
	}

	return res
}

func toAdherenceResponse(st *domain.AdherenceStatus) *dto.AdherenceResponse {
	if st == nil {
		return nil
	}
	return &dto.AdherenceResponse{
		State:                    string(st.State),
		DeltaMinutes:             st.DeltaMinutes,
		TargetStopID:             st.TargetStopID,
		TargetAddress:            st.TargetAddress,
		EstimatedArrivalAtTarget: st.EstimatedArrivalAtTarget,
		TravelSeconds:            st.TravelSeconds,
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func toSnapshotPayload(snap services.Snapshot) dto.SnapshotPayload {
	p := dto.SnapshotPayload{
		Version:      snap.Version,
		SessionID:    snap.SessionID,
		TechnicianID: snap.TechnicianID,
		Date:         snap.Date.Format(domain.DateLayout),
		HomeAddress:  snap.HomeAddress,
		Tracking:     snap.Tracking,
		Plan: dto.PhaseResponse{
			Phase: string(snap.Plan.Phase),
			Token: snap.Plan.Token,
			Error: errString(snap.Plan.Err),
		},
		Adherence: dto.PhaseResponse{
			Phase: string(snap.Adherence.Phase),
			Token: snap.Adherence.Token,
			Error: errString(snap.Adherence.Err),
		},
		Status: toAdherenceResponse(snap.Adherence.Status),
	}
	if snap.Plan.Timeline != nil {
		tl := toTimelineResponse(snap.Plan.Stops, snap.Plan.Timeline)
		p.Timeline = &tl
	}
	if pos := snap.Adherence.Position; pos != nil {
		p.Position = &dto.PositionRequest{
			Lat:       pos.Lat,
			Lng:       pos.Lng,
			Timestamp: pos.Timestamp,
			Accuracy:  pos.AccuracyMeters,
		}
	}
	return p
}
