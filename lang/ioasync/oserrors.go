package ioasync

import "os"

func isNotExist(err error) bool   { return os.IsNotExist(err) }
func isExist(err error) bool      { return os.IsExist(err) }
func isPermission(err error) bool { return os.IsPermission(err) }
