package ledger

import "kimbiofarm-backend/internal/audit"

func auditActorForTest() audit.Actor {
	id := uint(1)
	return audit.Actor{UserID: &id, UserName: "Kim"}
}
