package service

import "context"

// PurgeStaleSessions deletes sessions older than the retention window that were never approved.
func (s *PaymentService) PurgeStaleSessions(ctx context.Context) (int64, error) {
	before := s.now().Add(-s.threeDSCfg.SessionRetention)
	return s.sessionRepo.DeleteStale(ctx, before)
}

func (s *PaymentService) RunPurgeStaleSessions(ctx context.Context) error {
	deleted, err := s.PurgeStaleSessions(ctx)
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.logger.WithField("deleted", deleted).Info("Purged stale sessions")
	}
	return nil
}
