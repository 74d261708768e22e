package queue

// ExpireMessage is the payload carried through the delayed expiration
// queue.  It is intentionally minimal: the coordinator's expire operation
// re-reads everything it needs under lock, so a stale message can never
// cause a wrong transition.
type ExpireMessage struct {
	ReservationID string `json:"reservation_id"`
}
