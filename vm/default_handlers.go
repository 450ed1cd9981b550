package vm

// RegisterDefaultHandlers 注册所有默认的操作处理器
func RegisterDefaultHandlers(reg *HandlerRegistry, auth Authorizer, indexes IndexAllocator) error {
	handlers := []OpHandler{
		&CreateVaultHandler{Indexes: indexes}, // 开户
		&DepositHandler{},                     // 存入
		&WithdrawHandler{},                    // 提取
		&CloseVaultHandler{},                  // 销户
		// 授权程序的锁定类操作
		&LockHandler{Auth: auth},
		&UnlockHandler{Auth: auth},
		&TransferHandler{Auth: auth},
	}

	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}
