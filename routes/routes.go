// Package routes provides shared API route constants used by the SDK and the
// CLI to prevent path mismatches with the backend.
package routes

// API route paths, relative to the configured base URL (which carries the /api prefix).
const (
	// AuthRegister creates an account and returns a token pair plus the new user.
	AuthRegister = "/auth/register"

	// AuthLogin exchanges email and password for a token pair plus the user.
	AuthLogin = "/auth/login"

	// AuthMe returns the current authenticated user's profile.
	AuthMe = "/auth/me"

	// AuthLogout invalidates the bearer token server-side (best effort).
	AuthLogout = "/auth/logout"

	// AIModels lists the models offered to the client along with their tier.
	AIModels = "/ai/models"

	// AIGenerate generates code for a prompt with the selected model.
	AIGenerate = "/ai/generate"

	// AIExplain explains a code snippet with the selected model.
	AIExplain = "/ai/explain"

	// History is the prefix for history listing (/history/{type}) and items (/history/{id}).
	History = "/history"

	// HistoryClear is the prefix for clearing history by type (/history/clear/{type}).
	HistoryClear = "/history/clear"

	// PaymentPlans lists subscription plans (public).
	PaymentPlans = "/payment/plans"

	// PaymentCreateCheckout creates a hosted checkout session for a plan.
	PaymentCreateCheckout = "/payment/create-checkout"

	// PaymentSubscription returns the caller's subscription.
	PaymentSubscription = "/payment/subscription"

	// PaymentCancel cancels the caller's subscription.
	PaymentCancel = "/payment/cancel"

	// PaymentPortal returns a billing portal URL.
	PaymentPortal = "/payment/portal"

	// UserProfile reads (GET) and updates (PUT) the caller's profile.
	UserProfile = "/user/profile"
)
