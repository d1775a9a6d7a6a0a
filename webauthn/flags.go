package webauthn

import "strings"

// Flags represents the single flags byte of authenticator data.
//
// https://www.w3.org/TR/webauthn-3/#authdata-flags
type Flags byte

const (
	flagUP = 1 << 0
	flagRFU1 = 1 << 1
	flagUV = 1 << 2
	flagBE = 1 << 3
	flagBS = 1 << 4
	flagRFU2 = 1 << 5
	flagAT = 1 << 6
	flagED = 1 << 7
)

// UserPresent reports whether the authenticator performed a user-presence
// test (the "UP" bit).
func (f Flags) UserPresent() bool { return byte(f)&flagUP != 0 }

// UserVerified reports whether the authenticator performed user
// verification, such as a PIN or biometric check (the "UV" bit).
func (f Flags) UserVerified() bool { return byte(f)&flagUV != 0 }

// BackupEligible reports whether the credential is eligible for backup to
// another device (the "BE" bit).
func (f Flags) BackupEligible() bool { return byte(f)&flagBE != 0 }

// BackedUp reports whether the credential has actually been backed up (the
// "BS" bit).
func (f Flags) BackedUp() bool { return byte(f)&flagBS != 0 }

// AttestedCredentialData reports whether attested credential data follows
// the fixed fields (the "AT" bit).
func (f Flags) AttestedCredentialData() bool { return byte(f)&flagAT != 0 }

// Extensions reports whether an extensions CBOR map follows (the "ED"
// bit).
func (f Flags) Extensions() bool { return byte(f)&flagED != 0 }

// String renders the set bits using their spec abbreviations, e.g.
// "Flags(UP|UV|AT)".
func (f Flags) String() string {
	var vals []string
	if f.UserPresent() {
		vals = append(vals, "UP")
	}
	if f.UserVerified() {
		vals = append(vals, "UV")
	}
	if f.BackupEligible() {
		vals = append(vals, "BE")
	}
	if f.BackedUp() {
		vals = append(vals, "BS")
	}
	if f.AttestedCredentialData() {
		vals = append(vals, "AT")
	}
	if f.Extensions() {
		vals = append(vals, "ED")
	}
	return "Flags(" + strings.Join(vals, "|") + ")"
}

// Set returns the symbolic flag set: a map with the keys "UP", "UV", "AT"
// and "ED", each true when its bit is set.
func (f Flags) Set() map[string]bool {
	return map[string]bool{
		"UP": f.UserPresent(),
		"UV": f.UserVerified(),
		"AT": f.AttestedCredentialData(),
		"ED": f.Extensions(),
	}
}
