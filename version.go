package sdk

// Version is the published SDK version.
// 0.3.0: Session store validates JWT expiry locally before calling /auth/me.
// 0.2.0: Breaking - NewClient no longer requires a credential; public endpoints work anonymously.
const Version = "0.3.0"
