// Package access decides whether a user currently has access to the exam
// catalog, and on what basis. Evaluation is a pure function of the stored
// timestamps and the supplied clock; it never touches the store.
package access

import (
	"time"

	"github.com/prepstack/prepstack/internal/model"
)

// Evaluate reports the user's entitlement at the given instant.
//
// Premium wins over an overlapping trial window. A missing or zero
// registration date makes the trial window empty; a premium flag without an
// expiry is treated as expired rather than as an error.
func Evaluate(u model.User, now time.Time) model.Access {
	premiumActive := u.IsPremium &&
		u.PremiumExpiresAt != nil &&
		u.PremiumExpiresAt.After(now)

	if premiumActive {
		return model.Access{
			HasAccess: true,
			Type:      model.AccessPremium,
			ExpiresAt: *u.PremiumExpiresAt,
		}
	}

	trialEnd := u.TrialEndsAt()
	if !u.RegistrationDate.IsZero() && now.Before(trialEnd) {
		return model.Access{
			HasAccess: true,
			Type:      model.AccessTrial,
			ExpiresAt: trialEnd,
		}
	}

	return model.Access{
		HasAccess: false,
		Type:      model.AccessExpired,
		ExpiresAt: trialEnd,
	}
}
