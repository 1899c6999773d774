package services

func (s *GenerationService) SetIDGenerator(f func() string) {
	s.newID = f
}

var ResolveContentType = resolveContentType
