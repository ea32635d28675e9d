package bells

import "testing"

func TestNormalBellValidate(t *testing.T) {
	cases := []struct {
		name    string
		bell    NormalBell
		wantErr bool
	}{
		{"valid", NormalBell{Hour: 8, Minute: 30, Days: []string{"Mon", "Fri"}}, false},
		{"empty days", NormalBell{Hour: 8, Minute: 30}, false},
		{"hour too high", NormalBell{Hour: 24, Minute: 0}, true},
		{"hour negative", NormalBell{Hour: -1, Minute: 0}, true},
		{"minute too high", NormalBell{Hour: 0, Minute: 60}, true},
		{"bad day token", NormalBell{Hour: 8, Minute: 0, Days: []string{"Monday"}}, true},
		{"lowercase day token", NormalBell{Hour: 8, Minute: 0, Days: []string{"mon"}}, true},
	}

	for _, c := range cases {
		err := c.bell.Validate()
		if (err != nil) != c.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr %v", c.name, err, c.wantErr)
		}
	}
}

func TestSpecialBellValidate(t *testing.T) {
	cases := []struct {
		name    string
		bell    SpecialBell
		wantErr bool
	}{
		{"valid", SpecialBell{Hour: 8, Minute: 0, StartDate: "2026-06-01", EndDate: "2026-06-05"}, false},
		{"single day", SpecialBell{Hour: 8, Minute: 0, StartDate: "2026-06-01", EndDate: "2026-06-01"}, false},
		{"reversed dates", SpecialBell{Hour: 8, Minute: 0, StartDate: "2026-06-05", EndDate: "2026-06-01"}, true},
		{"bad start date", SpecialBell{Hour: 8, Minute: 0, StartDate: "06/01/2026", EndDate: "2026-06-05"}, true},
		{"bad end date", SpecialBell{Hour: 8, Minute: 0, StartDate: "2026-06-01", EndDate: ""}, true},
		{"bad clock", SpecialBell{Hour: 25, Minute: 0, StartDate: "2026-06-01", EndDate: "2026-06-05"}, true},
	}

	for _, c := range cases {
		err := c.bell.Validate()
		if (err != nil) != c.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr %v", c.name, err, c.wantErr)
		}
	}
}
