package ws

type Hubs struct {
	Violations *ViolationHub
	Student    *StudentHub
}

func NewHubs() *Hubs {
	return &Hubs{
		Violations: NewViolationHub(),
		Student:    NewStudentHub(),
	}
}
