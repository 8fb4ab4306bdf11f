package models

import "github.com/google/uuid"

// SystemActorID marks mutations performed by the platform itself, such as
// lazy invoice expiry, rather than by a user or admin.
var SystemActorID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
