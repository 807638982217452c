package expiry

// The display zone must resolve in minimal container images without a zoneinfo database.
import _ "time/tzdata"
