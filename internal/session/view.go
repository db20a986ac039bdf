package session

import "fmt"

// View is a navigation target in the banking UI.
type View string

const (
	ViewDashboard    View = "dashboard"
	ViewTransactions View = "transactions"
	ViewFraud        View = "fraud"
	ViewSettings     View = "settings"
	ViewProfile      View = "profile"
)

var viewTitles = map[View]string{
	ViewDashboard:    "Dashboard",
	ViewTransactions: "Transaction History",
	ViewFraud:        "Fraud Detection",
	ViewSettings:     "Settings",
	ViewProfile:      "Profile",
}

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	v := View(s)
	if _, ok := viewTitles[v]; !ok {
		return "", fmt.Errorf("unknown view %q", s)
	}
	return v, nil
}

// Title is the heading shown for v.
func (v View) Title() string {
	return viewTitles[v]
}
