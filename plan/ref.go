package plan

// ColumnRef is one resolved column reference produced by the selector
// package: the existing schema column Name, and the output As name
// (equal to Name unless the selector was a rename pair "new = old").
type ColumnRef struct {
	Name string
	As   string
}
